package protocol

import "sort"

// Query is a message sent by a solver to a problem server.
type Query interface {
	Marshaler
	GetQueryType() QueryType
}

// CallQuery asks the server to evaluate a solution.
type CallQuery struct {
	Solution []float64
}

func (q *CallQuery) GetQueryType() QueryType {
	return QueryCall
}

func (q *CallQuery) Marshal() ([]byte, error) {
	return EncodeQuery(q)
}

// NewRunQuery tells the server that a new run of the solver starts.
type NewRunQuery struct{}

func (q *NewRunQuery) GetQueryType() QueryType {
	return QueryNewRun
}

func (q *NewRunQuery) Marshal() ([]byte, error) {
	return EncodeQuery(q)
}

// StopQuery asks the server to shut down once it has acknowledged.
type StopQuery struct{}

func (q *StopQuery) GetQueryType() QueryType {
	return QueryStop
}

func (q *StopQuery) Marshal() ([]byte, error) {
	return EncodeQuery(q)
}

// RawQuery is a query whose type is not one of the built-in variants. It is
// what decoding yields for unrecognised query types, and what a solver uses to
// send arbitrary ones.
type RawQuery struct {
	Type QueryType

	// Fields holds every field but the discriminant.
	Fields map[string]interface{}

	// Raw is the payload as it was read, when the query was decoded.
	Raw []byte
}

// NewRawQuery builds a query of an arbitrary type.
func NewRawQuery(queryType QueryType, fields map[string]interface{}) *RawQuery {
	return &RawQuery{Type: queryType, Fields: fields}
}

func (q *RawQuery) GetQueryType() QueryType {
	return q.Type
}

func (q *RawQuery) Marshal() ([]byte, error) {
	return EncodeQuery(q)
}

// fieldNames returns the payload field names in a stable order.
func (q *RawQuery) fieldNames() []string {
	names := make([]string, 0, len(q.Fields))
	for name := range q.Fields {
		if name == FieldQueryType {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

var _ Query = (*CallQuery)(nil)
var _ Query = (*NewRunQuery)(nil)
var _ Query = (*StopQuery)(nil)
var _ Query = (*RawQuery)(nil)

package protocol

import "errors"

// Reply is a message sent by a problem server in response to exactly one
// query.
type Reply interface {
	Marshaler
	GetReplyType() ReplyType
}

// ValueReply carries the objective values of a call.
type ValueReply struct {
	Value []float64
}

func (r *ValueReply) GetReplyType() ReplyType {
	return ReplyValue
}

func (r *ValueReply) Marshal() ([]byte, error) {
	return EncodeReply(r)
}

// First returns the first objective value.
func (r *ValueReply) First() (float64, error) {
	if len(r.Value) == 0 {
		return 0, NewError(KindPayloadIncomplete, "value reply carries no value")
	}

	return r.Value[0], nil
}

// AckReply acknowledges a query that has no result.
type AckReply struct{}

func (r *AckReply) GetReplyType() ReplyType {
	return ReplyAck
}

func (r *AckReply) Marshal() ([]byte, error) {
	return EncodeReply(r)
}

// ErrorReply reports that a query could not be served.
type ErrorReply struct {
	Code    int
	Message string
}

// NewErrorReply builds the error reply that reports err. Errors outside the
// taxonomy are reported as server errors.
func NewErrorReply(err error) *ErrorReply {
	var e *Error
	if errors.As(err, &e) {
		return &ErrorReply{Code: e.Code(), Message: e.Message}
	}

	return &ErrorReply{Code: KindServerError.Code(), Message: err.Error()}
}

func (r *ErrorReply) GetReplyType() ReplyType {
	return ReplyError
}

func (r *ErrorReply) Marshal() ([]byte, error) {
	return EncodeReply(r)
}

// Err converts the reply into a ServerError.
func (r *ErrorReply) Err() error {
	return NewError(KindServerError, "problem server error: %s", r.Message)
}

var _ Reply = (*ValueReply)(nil)
var _ Reply = (*AckReply)(nil)
var _ Reply = (*ErrorReply)(nil)

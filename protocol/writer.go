package protocol

import (
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/sjson"
)

var emptyObject = []byte("{}")

// EncodeQuery serialises q as a single line of JSON. The discriminant is
// always the first field, payload fields follow in a fixed order.
func EncodeQuery(q Query) (data []byte, err error) {
	data, err = sjson.SetBytes(emptyObject, FieldQueryType, string(q.GetQueryType()))
	if err != nil {
		return nil, err
	}

	switch c := q.(type) {
	case *CallQuery:
		data, err = setNumbers(data, FieldSolution, c.Solution)

	case *NewRunQuery, *StopQuery:
		// No payload

	case *RawQuery:
		for _, name := range c.fieldNames() {
			data, err = sjson.SetBytes(data, escapePath(name), c.Fields[name])
			if err != nil {
				break
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("Failed to encode %s query: %w", q.GetQueryType(), err)
	}

	return data, nil
}

// EncodeReply serialises r as a single line of JSON. The discriminant is
// always the first field, payload fields follow in a fixed order.
func EncodeReply(r Reply) (data []byte, err error) {
	data, err = sjson.SetBytes(emptyObject, FieldReplyType, string(r.GetReplyType()))
	if err != nil {
		return nil, err
	}

	switch c := r.(type) {
	case *ValueReply:
		data, err = setNumbers(data, FieldValue, c.Value)

	case *AckReply:
		// No payload

	case *ErrorReply:
		data, err = sjson.SetBytes(data, FieldCode, c.Code)
		if err == nil {
			data, err = sjson.SetBytes(data, FieldMessage, c.Message)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("Failed to encode %s reply: %w", r.GetReplyType(), err)
	}

	return data, nil
}

// WriteQuery encodes q and writes it to w in a single write.
func WriteQuery(w io.Writer, q Query) error {
	data, err := EncodeQuery(q)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// WriteReply encodes r and writes it to w in a single write.
func WriteReply(w io.Writer, r Reply) error {
	data, err := EncodeReply(r)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

func setNumbers(data []byte, field string, numbers []float64) ([]byte, error) {
	if numbers == nil {
		// Never encode a missing array as null
		numbers = []float64{}
	}

	return sjson.SetBytes(data, field, numbers)
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
)

// escapePath makes a field name safe to use as an sjson path.
func escapePath(name string) string {
	return pathEscaper.Replace(name)
}

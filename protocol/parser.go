package protocol

import (
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// DecodeQuery parses a single query payload.
//
// Query types other than the built-in ones decode to a *RawQuery; whether
// they are supported is up to the receiving server.
func DecodeQuery(data []byte) (Query, error) {
	doc, err := parseObject(data)
	if err != nil {
		return nil, err
	}

	queryType, err := discriminant(doc, FieldQueryType, data)
	if err != nil {
		return nil, err
	}

	switch QueryType(queryType) {
	case QueryCall:
		solution, err := numbers(doc, FieldSolution, data)
		if err != nil {
			return nil, err
		}

		return &CallQuery{Solution: solution}, nil

	case QueryNewRun:
		return &NewRunQuery{}, nil

	case QueryStop:
		return &StopQuery{}, nil

	default:
		q := &RawQuery{
			Type:   QueryType(queryType),
			Fields: make(map[string]interface{}),
			Raw:    data,
		}

		doc.ForEach(func(key, value gjson.Result) bool {
			if key.String() != FieldQueryType {
				q.Fields[key.String()] = value.Value()
			}
			return true
		})

		return q, nil
	}
}

// DecodeReply parses a single reply payload. Unrecognised reply types fail
// with ErrUnknownVariant.
func DecodeReply(data []byte) (Reply, error) {
	doc, err := parseObject(data)
	if err != nil {
		return nil, err
	}

	replyType, err := discriminant(doc, FieldReplyType, data)
	if err != nil {
		return nil, err
	}

	switch ReplyType(replyType) {
	case ReplyValue:
		value, err := numbers(doc, FieldValue, data)
		if err != nil {
			return nil, err
		}

		return &ValueReply{Value: value}, nil

	case ReplyAck:
		return &AckReply{}, nil

	case ReplyError:
		reply := &ErrorReply{}

		message := doc.Get(FieldMessage)
		if !message.Exists() {
			return nil, NewError(KindPayloadIncomplete,
				"error reply without a `%s` field", FieldMessage).WithPayload(data)
		}

		if message.Type != gjson.String {
			return nil, NewError(KindPayloadTypeError,
				"`%s` must be a string, got %s", FieldMessage, message.Type).WithPayload(data)
		}

		reply.Message = message.Str

		if code := doc.Get(FieldCode); code.Exists() {
			if code.Type != gjson.Number {
				return nil, NewError(KindPayloadTypeError,
					"`%s` must be a number, got %s", FieldCode, code.Type).WithPayload(data)
			}

			reply.Code = int(code.Int())
		}

		return reply, nil

	default:
		return nil, &Error{
			Kind:    KindPayloadTypeError,
			Message: msgUnknownVariant,
			Payload: data,
			err:     fmt.Errorf("%s %q", FieldReplyType, replyType),
		}
	}
}

// ReadQuery reads one whole query from data, up to end-of-stream, and
// decodes it.
//
// To avoid denial of service attacks, the provided Reader should be an
// io.LimitReader or similar Reader to bound the size of queries.
func ReadQuery(data io.Reader) (Query, error) {
	raw, err := readPayload(data)
	if err != nil {
		return nil, err
	}

	return DecodeQuery(raw)
}

// ReadReply reads one whole reply from data, up to end-of-stream, and
// decodes it.
//
// To avoid denial of service attacks, the provided Reader should be an
// io.LimitReader or similar Reader to bound the size of replies.
func ReadReply(data io.Reader) (Reply, error) {
	raw, err := readPayload(data)
	if err != nil {
		return nil, err
	}

	return DecodeReply(raw)
}

func readPayload(data io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		if _, ok := KindOf(err); ok {
			return nil, err
		}

		return nil, WrapError(KindUnreadable, err, "Failed to read payload")
	}

	return raw, nil
}

func parseObject(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, NewError(KindPayloadError,
			"payload is not valid JSON").WithPayload(data)
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return gjson.Result{}, NewError(KindPayloadError,
			"payload is not a JSON object").WithPayload(data)
	}

	return doc, nil
}

func discriminant(doc gjson.Result, field string, data []byte) (string, error) {
	tag := doc.Get(field)
	if !tag.Exists() {
		return "", &Error{
			Kind:    KindPayloadTypeError,
			Message: msgMissingDiscriminant,
			Payload: data,
			err:     fmt.Errorf("no `%s` field", field),
		}
	}

	if tag.Type != gjson.String {
		return "", NewError(KindPayloadTypeError,
			"`%s` must be a string, got %s", field, tag.Type).WithPayload(data)
	}

	return tag.Str, nil
}

// numbers reads an array of numbers, keeping order and float64 precision.
func numbers(doc gjson.Result, field string, data []byte) ([]float64, error) {
	arr := doc.Get(field)
	if !arr.Exists() {
		return nil, NewError(KindPayloadIncomplete,
			"missing `%s` field", field).WithPayload(data)
	}

	if !arr.IsArray() {
		return nil, NewError(KindPayloadTypeError,
			"`%s` must be an array, got %s", field, arr.Type).WithPayload(data)
	}

	elems := arr.Array()
	out := make([]float64, 0, len(elems))

	for i, elem := range elems {
		if elem.Type != gjson.Number {
			return nil, NewError(KindPayloadTypeError,
				"`%s[%d]` must be a number, got %s", field, i, elem.Type).WithPayload(data)
		}

		out = append(out, elem.Num)
	}

	return out, nil
}

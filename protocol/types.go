package protocol

// QueryType is the discriminant carried in the `query_type` field.
type QueryType string

const (
	QueryCall   QueryType = "call"
	QueryNewRun QueryType = "new_run"
	QueryStop   QueryType = "stop"
)

// ReplyType is the discriminant carried in the `reply_type` field.
type ReplyType string

const (
	ReplyValue ReplyType = "value"
	ReplyAck   ReplyType = "ack"
	ReplyError ReplyType = "error"
)

// Field names used on the wire.
const (
	FieldQueryType = "query_type"
	FieldSolution  = "solution"
	FieldReplyType = "reply_type"
	FieldValue     = "value"
	FieldCode      = "code"
	FieldMessage   = "message"
)

// Marshaler is implemented by every message that can be written to a channel.
type Marshaler interface {
	Marshal() ([]byte, error)
}

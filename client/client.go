package client

import (
	"context"
	"errors"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/luma/elpida/protocol"
	"github.com/luma/elpida/transport"
)

// Result is the outcome of a call. A failed result carries the reason in
// Err, the solver decides whether to carry on.
type Result struct {
	Value float64
	Err   error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Client is the solver side of a channel pair. Every method blocks until
// its round trip is over, there is no retry.
type Client struct {
	pair transport.Pair
	log  *zap.Logger
}

func New(pair transport.Pair, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		pair: pair,
		log:  log,
	}
}

// Send writes q to the query channel. It returns once the problem server has
// read the whole query.
func (c *Client) Send(ctx context.Context, q protocol.Query) error {
	c.log.Debug("Send a query", zap.String("queryType", string(q.GetQueryType())))

	if err := c.pair.WriteQuery(ctx, q); err != nil {
		c.log.Warn("Failed to send query",
			zap.String("queryType", string(q.GetQueryType())),
			zap.Error(err))
		return err
	}

	return nil
}

// Receive blocks until a whole reply has been read from the reply channel.
func (c *Client) Receive(ctx context.Context) (protocol.Reply, error) {
	c.log.Debug("Read the reply")

	reply, err := c.pair.ReadReply(ctx)
	if err != nil {
		c.log.Warn("Failed to read reply", zap.Error(err))
		return nil, err
	}

	return reply, nil
}

// Query sends q and waits for its reply.
func (c *Client) Query(ctx context.Context, q protocol.Query) (protocol.Reply, error) {
	if err := c.Send(ctx, q); err != nil {
		return nil, err
	}

	return c.Receive(ctx)
}

// Call asks the problem server to evaluate solution.
//
// Replies that report an error, even malformed ones, and replies without a
// reply_type are application failures: they are logged and returned as a failed Result with
// a nil error. The error is only set when the exchange itself failed.
func (c *Client) Call(ctx context.Context, solution []float64) (Result, error) {
	reply, err := c.Query(ctx, &protocol.CallQuery{Solution: solution})
	if errors.Is(err, protocol.ErrMissingDiscriminant) {
		c.log.Warn("Problem server replied without a reply type", zap.Error(err))
		return Result{Err: protocol.NewError(protocol.KindPayloadTypeError,
			"Missing `%s` field", protocol.FieldReplyType)}, nil
	}

	if isMalformedErrorReply(err) {
		c.log.Warn("Problem server sent a malformed error reply", zap.Error(err))
		return Result{Err: err}, nil
	}

	if err != nil {
		return Result{}, err
	}

	switch r := reply.(type) {
	case *protocol.ValueReply:
		value, err := r.First()
		if err != nil {
			return Result{}, err
		}

		return Result{Value: value}, nil

	case *protocol.ErrorReply:
		c.log.Warn("Problem server reported an error",
			zap.Int("code", r.Code),
			zap.String("message", r.Message))
		return Result{Err: r.Err()}, nil

	default:
		return Result{}, unexpected(protocol.QueryCall, reply)
	}
}

// Evaluate is Call for callers that have no use for a failed result: every
// failure is returned as an error.
func (c *Client) Evaluate(ctx context.Context, solution []float64) (float64, error) {
	result, err := c.Call(ctx, solution)
	if err != nil {
		return 0, err
	}

	return result.Value, result.Err
}

// NewRun tells the problem server that a new run starts.
func (c *Client) NewRun(ctx context.Context) error {
	return c.expectAck(ctx, &protocol.NewRunQuery{})
}

// Stop asks the problem server to shut down.
func (c *Client) Stop(ctx context.Context) error {
	return c.expectAck(ctx, &protocol.StopQuery{})
}

func (c *Client) expectAck(ctx context.Context, q protocol.Query) error {
	reply, err := c.Query(ctx, q)
	if err != nil {
		return err
	}

	switch r := reply.(type) {
	case *protocol.AckReply:
		return nil

	case *protocol.ErrorReply:
		c.log.Warn("Problem server reported an error",
			zap.String("queryType", string(q.GetQueryType())),
			zap.Int("code", r.Code),
			zap.String("message", r.Message))
		return r.Err()

	default:
		return unexpected(q.GetQueryType(), reply)
	}
}

// isMalformedErrorReply reports whether err comes from decoding a reply
// that is tagged as an error but whose payload is broken.
func isMalformedErrorReply(err error) bool {
	var e *protocol.Error
	if !errors.As(err, &e) || e.Payload == nil {
		return false
	}

	return gjson.GetBytes(e.Payload, protocol.FieldReplyType).String() == string(protocol.ReplyError)
}

// IsFailure reports whether reply is an application failure.
func IsFailure(reply protocol.Reply) bool {
	if reply == nil {
		return true
	}

	_, isErr := reply.(*protocol.ErrorReply)
	return isErr
}

func unexpected(queryType protocol.QueryType, reply protocol.Reply) error {
	return protocol.NewError(protocol.KindPayloadTypeError,
		"unexpected %s reply to a %s query", reply.GetReplyType(), queryType)
}

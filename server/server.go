// Package server implements the problem server side of a channel pair: a
// receive, dispatch, reply loop that answers exactly one reply per query.
//
// Query processing pipeline:
//
//	ReadQuery → middleware chain → dispatch (type switch) → WriteReply
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/elpida/protocol"
	"github.com/luma/elpida/storage"
	"github.com/luma/elpida/transport"
)

// UnsupportedMessage is the message of the error reply sent for query types
// the server does not handle.
const UnsupportedMessage = "Unsupported message type"

// errStop is returned by dispatch once a stop query has been acknowledged.
var errStop = errors.New("stop requested")

// Evaluator is the problem the server evaluates solutions of.
type Evaluator interface {
	Evaluate(ctx context.Context, solution []float64) (float64, error)
	NewRun(ctx context.Context) error
}

type Options struct {
	Pair      transport.Pair
	Evaluator Evaluator

	// History records every successful evaluation, it's optional
	History storage.Store

	Log *zap.Logger
}

// Stats counts what the server has done so far.
type Stats struct {
	Queries   int       `json:"queries"`
	Calls     int       `json:"calls"`
	Runs      int       `json:"runs"`
	Errors    int       `json:"errors"`
	LastQuery time.Time `json:"lastQuery"`
}

type Server struct {
	pair      transport.Pair
	evaluator Evaluator
	history   storage.Store

	middlewares []Middleware
	handlers    map[protocol.QueryType]HandlerFunc

	mu    sync.Mutex
	stats Stats

	log *zap.Logger
}

func New(options Options) *Server {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Server{
		pair:      options.Pair,
		evaluator: options.Evaluator,
		history:   options.History,
		handlers:  make(map[protocol.QueryType]HandlerFunc),
		log:       log,
	}
}

// Use registers a middleware. Middlewares are applied in the order they are
// added.
func (s *Server) Use(mw Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Handle registers a handler for a query type that the server would
// otherwise reject as unsupported.
func (s *Server) Handle(queryType protocol.QueryType, handler HandlerFunc) {
	s.handlers[queryType] = handler
}

// Stats returns a snapshot of the counters. It's safe to call while Serve
// is running.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Serve answers queries until one of them ends the loop.
//
// It returns nil after acknowledging a stop query. After replying to an
// undecodable or unsupported query it returns the *protocol.Error describing
// it, whose code is meant to become the process exit status. Failures of the
// evaluator are reported to the solver and do not end the loop.
func (s *Server) Serve(ctx context.Context) error {
	handler := Chain(s.middlewares...)(s.dispatch)

	for {
		s.log.Debug("Waiting for a query")

		q, err := s.pair.ReadQuery(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return s.fail(ctx, err)
		}

		s.count(func(stats *Stats) {
			stats.Queries++
			stats.LastQuery = time.Now()
		})

		reply, err := handler(ctx, q)
		if reply == nil {
			// Every query gets exactly one reply, even when a handler forgot
			reply = protocol.NewErrorReply(noReply(q, err))
		}

		if werr := s.pair.WriteReply(ctx, reply); werr != nil {
			s.log.Error("Failed to write reply",
				zap.String("queryType", string(q.GetQueryType())),
				zap.Error(werr))
			return werr
		}

		switch {
		case err == nil:
			continue

		case errors.Is(err, errStop):
			s.log.Info("Stop requested, exiting...")
			return nil

		default:
			s.log.Error("Terminating", zap.Error(err), zap.Int("code", protocol.ExitCode(err)))
			return err
		}
	}
}

// fail replies to a query that could not be read or decoded, then hands the
// error back to end the loop.
func (s *Server) fail(ctx context.Context, err error) error {
	s.count(func(stats *Stats) { stats.Errors++ })

	kind, ok := protocol.KindOf(err)
	if !ok || kind == protocol.KindUnreadable || kind == protocol.KindNoFile {
		// The query channel itself is broken, there is nobody to reply to
		s.log.Error("Failed to read query", zap.Error(err))
		return err
	}

	s.log.Error("Failed to decode query", zap.Error(err))

	if werr := s.pair.WriteReply(ctx, protocol.NewErrorReply(err)); werr != nil {
		s.log.Error("Failed to report decoding error", zap.Error(werr))
	}

	return err
}

func (s *Server) dispatch(ctx context.Context, q protocol.Query) (protocol.Reply, error) {
	switch c := q.(type) {
	case *protocol.CallQuery:
		return s.call(ctx, c), nil

	case *protocol.NewRunQuery:
		return s.newRun(ctx), nil

	case *protocol.StopQuery:
		if handler, ok := s.handlers[protocol.QueryStop]; ok {
			return handler(ctx, q)
		}

		return &protocol.AckReply{}, errStop

	default:
		if handler, ok := s.handlers[q.GetQueryType()]; ok {
			return handler(ctx, q)
		}

		s.count(func(stats *Stats) { stats.Errors++ })

		err := protocol.NewError(protocol.KindNotSupported, "%s: %q", UnsupportedMessage, q.GetQueryType())
		return &protocol.ErrorReply{Code: err.Code(), Message: UnsupportedMessage}, err
	}
}

func (s *Server) call(ctx context.Context, q *protocol.CallQuery) protocol.Reply {
	s.count(func(stats *Stats) { stats.Calls++ })

	value, err := s.evaluator.Evaluate(ctx, q.Solution)
	if err != nil {
		s.count(func(stats *Stats) { stats.Errors++ })
		s.log.Warn("Failed to evaluate solution",
			zap.Float64s("solution", q.Solution),
			zap.Error(err))
		return protocol.NewErrorReply(err)
	}

	if s.history != nil {
		if err := s.history.Record(ctx, q.Solution, value); err != nil {
			s.log.Warn("Failed to record evaluation", zap.Error(err))
		}
	}

	return &protocol.ValueReply{Value: []float64{value}}
}

func (s *Server) newRun(ctx context.Context) protocol.Reply {
	if err := s.evaluator.NewRun(ctx); err != nil {
		s.count(func(stats *Stats) { stats.Errors++ })
		s.log.Warn("Failed to start a new run", zap.Error(err))
		return protocol.NewErrorReply(err)
	}

	s.count(func(stats *Stats) { stats.Runs++ })

	if s.history != nil {
		if _, err := s.history.NewRun(ctx); err != nil {
			s.log.Warn("Failed to record new run", zap.Error(err))
		}
	}

	return &protocol.AckReply{}
}

func noReply(q protocol.Query, err error) error {
	if err != nil {
		return err
	}

	return protocol.NewError(protocol.KindServerError, "no reply to %s query", q.GetQueryType())
}

func (s *Server) count(fn func(stats *Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

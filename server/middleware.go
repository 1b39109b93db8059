package server

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luma/elpida/protocol"
)

// HandlerFunc answers one query. A non-nil error ends the server loop once
// the reply has been written.
type HandlerFunc func(ctx context.Context, q protocol.Query) (protocol.Reply, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one, the first one being the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// LoggingMiddleware logs every query with its reply and how long it took.
func LoggingMiddleware(log *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, q protocol.Query) (protocol.Reply, error) {
			start := time.Now()
			reply, err := next(ctx, q)

			fields := []zap.Field{
				zap.String("queryType", string(q.GetQueryType())),
				zap.Duration("duration", time.Since(start)),
			}

			if reply != nil {
				fields = append(fields, zap.String("replyType", string(reply.GetReplyType())))
			}

			if r, ok := reply.(*protocol.ErrorReply); ok {
				fields = append(fields, zap.Int("code", r.Code), zap.String("message", r.Message))
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			log.Info("Query served", fields...)
			return reply, err
		}
	}
}

// RateLimitMiddleware throttles evaluations with a token bucket. Queries
// are delayed rather than rejected, so the solver still gets exactly one
// reply per query.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, q protocol.Query) (protocol.Reply, error) {
			if q.GetQueryType() == protocol.QueryCall {
				if err := limiter.Wait(ctx); err != nil {
					return nil, err
				}
			}

			return next(ctx, q)
		}
	}
}

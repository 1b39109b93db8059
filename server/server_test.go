package server_test

import (
	"context"
	"errors"
	"io"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/elpida/client"
	"github.com/luma/elpida/problem"
	"github.com/luma/elpida/protocol"
	"github.com/luma/elpida/server"
	"github.com/luma/elpida/storage"
	"github.com/luma/elpida/transport"
)

var _ = Describe("Server", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		pair    transport.Pair
		history *storage.InmemoryStore
		sos     *problem.SumOfSquares
		srv     *server.Server
		c       *client.Client
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		pair = transport.NewRendezvousPair()
		history = storage.NewInmemoryStore()
		sos = problem.NewSumOfSquares(0)

		log, err := zap.NewDevelopment()
		Expect(err).To(Succeed())

		srv = server.New(server.Options{
			Pair:      pair,
			Evaluator: sos,
			History:   history,
			Log:       log,
		})

		c = client.New(pair, log)
	})

	AfterEach(func() {
		cancel()
		history.Close()
	})

	serve := func() <-chan error {
		done := make(chan error, 1)

		go func() {
			defer GinkgoRecover()
			done <- srv.Serve(ctx)
		}()

		return done
	}

	It("answers a call with its value", func() {
		done := serve()

		reply, err := c.Query(ctx, &protocol.CallQuery{Solution: []float64{1, 1}})
		Expect(err).To(Succeed())
		Expect(reply).To(Equal(&protocol.ValueReply{Value: []float64{2}}))

		Expect(c.Stop(ctx)).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})

	It("writes the value reply on the wire", func() {
		done := serve()

		Expect(pair.WriteQuery(ctx, &protocol.CallQuery{Solution: []float64{1, 1}})).To(Succeed())

		var raw []byte
		err := transport.WithReader(ctx, pair.Reply, transport.DefaultMaxPayload, func(r io.Reader) (err error) {
			raw, err = io.ReadAll(r)
			return err
		})
		Expect(err).To(Succeed())
		Expect(string(raw)).To(Equal(`{"reply_type":"value","value":[2]}`))

		Expect(c.Stop(ctx)).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})

	It("acknowledges new runs", func() {
		done := serve()

		Expect(c.NewRun(ctx)).To(Succeed())
		Expect(c.NewRun(ctx)).To(Succeed())
		Expect(sos.Runs()).To(Equal(2))
		Expect(history.Runs()).To(Equal(3))

		Expect(c.Stop(ctx)).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
		Expect(srv.Stats().Runs).To(Equal(2))
	})

	It("acknowledges stop and returns nil", func() {
		done := serve()

		reply, err := c.Query(ctx, &protocol.StopQuery{})
		Expect(err).To(Succeed())
		Expect(reply).To(Equal(&protocol.AckReply{}))

		Eventually(done).Should(Receive(BeNil()))
	})

	It("keeps consecutive round trips apart", func() {
		done := serve()

		first, err := c.Evaluate(ctx, []float64{1, 2})
		Expect(err).To(Succeed())

		second, err := c.Evaluate(ctx, []float64{3})
		Expect(err).To(Succeed())

		Expect(first).To(Equal(5.0))
		Expect(second).To(Equal(9.0))

		Expect(c.Stop(ctx)).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))

		evals, err := history.Evaluations(0)
		Expect(err).To(Succeed())
		Expect(evals).To(HaveLen(2))
		Expect(srv.Stats().Calls).To(Equal(2))
	})

	It("rejects unsupported queries and exits with their code", func() {
		done := serve()

		reply, err := c.Query(ctx, protocol.NewRawQuery("bogus", nil))
		Expect(err).To(Succeed())
		Expect(reply).To(Equal(&protocol.ErrorReply{Code: 134, Message: server.UnsupportedMessage}))

		var serveErr error
		Eventually(done).Should(Receive(&serveErr))
		Expect(errors.Is(serveErr, protocol.ErrNotSupported)).To(BeTrue())
		Expect(protocol.ExitCode(serveErr)).To(Equal(134))
	})

	It("reports queries it cannot decode, then exits", func() {
		done := serve()

		err := transport.WithWriter(ctx, pair.Query, func(w io.Writer) error {
			_, err := w.Write([]byte(`{"solution":[1]}`))
			return err
		})
		Expect(err).To(Succeed())

		reply, err := c.Receive(ctx)
		Expect(err).To(Succeed())
		Expect(reply).To(BeAssignableToTypeOf(&protocol.ErrorReply{}))
		Expect(reply.(*protocol.ErrorReply).Code).To(Equal(134))

		var serveErr error
		Eventually(done).Should(Receive(&serveErr))
		Expect(errors.Is(serveErr, protocol.ErrMissingDiscriminant)).To(BeTrue())
	})

	It("reports malformed JSON as a payload error", func() {
		done := serve()

		err := transport.WithWriter(ctx, pair.Query, func(w io.Writer) error {
			_, err := w.Write([]byte(`{"query_type":`))
			return err
		})
		Expect(err).To(Succeed())

		reply, err := c.Receive(ctx)
		Expect(err).To(Succeed())
		Expect(reply.(*protocol.ErrorReply).Code).To(Equal(133))

		var serveErr error
		Eventually(done).Should(Receive(&serveErr))
		Expect(protocol.ExitCode(serveErr)).To(Equal(133))
	})

	It("reports oversized queries, then exits", func() {
		pair.MaxPayload = 64
		srv = server.New(server.Options{Pair: pair, Evaluator: sos})
		c = client.New(pair, nil)
		done := serve()

		result, err := c.Call(ctx, make([]float64, 1000))
		Expect(err).To(Succeed())
		Expect(result.OK()).To(BeFalse())

		var serveErr error
		Eventually(done).Should(Receive(&serveErr))
		Expect(errors.Is(serveErr, protocol.ErrPayload)).To(BeTrue())
		Expect(protocol.ExitCode(serveErr)).To(Equal(133))
	})

	It("reports evaluator failures and keeps serving", func() {
		srv = server.New(server.Options{
			Pair:      pair,
			Evaluator: problem.NewSumOfSquares(3),
		})
		done := serve()

		result, err := c.Call(ctx, []float64{1, 1})
		Expect(err).To(Succeed())
		Expect(result.OK()).To(BeFalse())

		value, err := c.Evaluate(ctx, []float64{1, 1, 1})
		Expect(err).To(Succeed())
		Expect(value).To(Equal(3.0))

		Expect(c.Stop(ctx)).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
		Expect(srv.Stats().Errors).To(Equal(1))
	})

	It("serves custom query types through Handle", func() {
		srv.Handle("describe", func(ctx context.Context, q protocol.Query) (protocol.Reply, error) {
			return &protocol.ValueReply{Value: []float64{0}}, nil
		})
		done := serve()

		reply, err := c.Query(ctx, protocol.NewRawQuery("describe", map[string]interface{}{"verbose": true}))
		Expect(err).To(Succeed())
		Expect(reply).To(Equal(&protocol.ValueReply{Value: []float64{0}}))

		Expect(c.Stop(ctx)).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})

	It("replies with a server error when a handler returns no reply", func() {
		srv.Handle("silent", func(ctx context.Context, q protocol.Query) (protocol.Reply, error) {
			return nil, nil
		})
		done := serve()

		reply, err := c.Query(ctx, protocol.NewRawQuery("silent", nil))
		Expect(err).To(Succeed())
		Expect(reply.(*protocol.ErrorReply).Code).To(Equal(254))

		Expect(c.Stop(ctx)).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})

	It("returns once the context is cancelled", func() {
		done := serve()

		Consistently(done).ShouldNot(Receive())
		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})

	It("throttles calls with the rate limit middleware", func() {
		srv.Use(server.RateLimitMiddleware(10, 1))
		done := serve()

		start := time.Now()
		for i := 0; i < 3; i++ {
			_, err := c.Evaluate(ctx, []float64{1})
			Expect(err).To(Succeed())
		}
		Expect(time.Since(start)).To(BeNumerically(">=", 150*time.Millisecond))

		Expect(c.Stop(ctx)).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})
})

var _ = Describe("Chain()", func() {
	It("applies middlewares first to last, outermost first", func() {
		var order []string

		record := func(name string) server.Middleware {
			return func(next server.HandlerFunc) server.HandlerFunc {
				return func(ctx context.Context, q protocol.Query) (protocol.Reply, error) {
					order = append(order, name)
					return next(ctx, q)
				}
			}
		}

		handler := server.Chain(record("a"), record("b"), server.LoggingMiddleware(zap.NewNop()))(
			func(ctx context.Context, q protocol.Query) (protocol.Reply, error) {
				order = append(order, "handler")
				return &protocol.AckReply{}, nil
			})

		reply, err := handler(context.Background(), &protocol.NewRunQuery{})
		Expect(err).To(Succeed())
		Expect(reply).To(Equal(&protocol.AckReply{}))
		Expect(order).To(Equal([]string{"a", "b", "handler"}))
	})
})

package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/elpida/client"
	"github.com/luma/elpida/problem"
	"github.com/luma/elpida/server"
	"github.com/luma/elpida/storage"
	"github.com/luma/elpida/transport"
)

var _ = Describe("DebugServer", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		history *storage.InmemoryStore
		debug   *server.DebugServer
	)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, path, nil)
		Expect(err).To(Succeed())

		debug.Handler().ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		pair := transport.NewRendezvousPair()
		history = storage.NewInmemoryStore()

		srv := server.New(server.Options{
			Pair:      pair,
			Evaluator: problem.NewSumOfSquares(0),
			History:   history,
		})
		debug = server.NewDebugServer(srv, false, nil)

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- srv.Serve(ctx)
		}()

		c := client.New(pair, nil)
		_, err := c.Evaluate(ctx, []float64{2, 2})
		Expect(err).To(Succeed())
		_, err = c.Evaluate(ctx, []float64{1, 0})
		Expect(err).To(Succeed())
		Expect(c.Stop(ctx)).To(Succeed())

		Eventually(done).Should(Receive(BeNil()))
	})

	AfterEach(func() {
		cancel()
		history.Close()
	})

	It("answers pings", func() {
		w := get("/ping")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("pong"))
	})

	It("returns the counters", func() {
		w := get("/stats")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"queries":3`))
		Expect(w.Body.String()).To(ContainSubstring(`"calls":2`))
	})

	It("returns the whole history", func() {
		w := get("/history")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"runs":[{"evaluations":[
			{"solution":[2,2],"value":8},
			{"solution":[1,0],"value":1}
		]}]}`))
	})

	It("returns a single run", func() {
		Expect(get("/history?run=0").Code).To(Equal(http.StatusOK))
		Expect(get("/history?run=4").Code).To(Equal(http.StatusNotFound))
		Expect(get("/history?run=x").Code).To(Equal(http.StatusBadRequest))
	})

	It("returns the best evaluation", func() {
		w := get("/history/best")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"run":0,"solution":[1,0],"value":1}`))
	})

	It("serves over a real listener", func() {
		addr, err := debug.Listen("127.0.0.1:0")
		Expect(err).To(Succeed())

		resp, err := http.Get("http://" + addr.String() + "/ping")
		Expect(err).To(Succeed())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		Expect(debug.Shutdown(time.Second)).To(Succeed())
	})
})

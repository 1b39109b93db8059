package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/zap"
)

// DebugServer exposes the server's counters and evaluation history over HTTP.
// It only reads, the solver keeps talking over the channel pair.
type DebugServer struct {
	server *Server
	http   *http.Server
	log    *zap.Logger
}

func NewDebugServer(s *Server, debugHTTP bool, log *zap.Logger) *DebugServer {
	if log == nil {
		log = zap.NewNop()
	}

	d := &DebugServer{
		server: s,
		log:    log,
	}

	d.http = &http.Server{Handler: d.setupRouter(debugHTTP)}
	return d
}

// Handler returns the router, mostly useful for tests.
func (d *DebugServer) Handler() http.Handler {
	return d.http.Handler
}

// Listen binds addr and serves in the background until Shutdown is called.
func (d *DebugServer) Listen(addr string) (net.Addr, error) {
	ln, err := reuseport.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Serve in a goroutine so that it won't block the channel pair loop
	go func() {
		if err := d.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("Debug http server errored", zap.Error(err))
		}
	}()

	d.log.Info("Debug http server listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

// Shutdown gives in-flight requests up to timeout to finish.
func (d *DebugServer) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	d.http.SetKeepAlivesEnabled(false)
	return d.http.Shutdown(ctx)
}

func (d *DebugServer) setupRouter(debugHTTP bool) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(d.log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	r.Use(ginzap.RecoveryWithZap(d.log, true))

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.server.Stats())
	})

	r.GET("/history", d.history)
	r.GET("/history/best", d.best)

	return r
}

// history returns the whole history document, or the evaluations of a single
// run with ?run=N.
func (d *DebugServer) history(c *gin.Context) {
	store := d.server.history
	if store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	if run := c.Query("run"); run != "" {
		idx, err := strconv.Atoi(run)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "run must be an integer"})
			return
		}

		evals, err := store.Evaluations(idx)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"run": idx, "evaluations": evals})
		return
	}

	data, err := store.Backup()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (d *DebugServer) best(c *gin.Context) {
	store := d.server.history
	if store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	best, ok := store.Best()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing evaluated yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": best.Run, "solution": best.Solution, "value": best.Value})
}

package transport

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/luma/elpida/protocol"
)

// Channel is one direction of a channel pair. Opening an end blocks until a
// peer has opened the other end, every message is a fresh open, transfer and
// close cycle.
type Channel interface {
	OpenWrite(ctx context.Context) (io.WriteCloser, error)
	OpenRead(ctx context.Context) (io.ReadCloser, error)

	String() string
}

// Pair is the query channel, from solver to problem server, and the reply
// channel, from problem server to solver. The pair does not own the
// underlying transport, closing or deleting it is up to whoever made it.
type Pair struct {
	Query Channel
	Reply Channel

	// MaxPayload bounds the size of a single message. Zero means
	// DefaultMaxPayload.
	MaxPayload int64
}

func (p Pair) maxPayload() int64 {
	if p.MaxPayload <= 0 {
		return DefaultMaxPayload
	}

	return p.MaxPayload
}

// WriteQuery writes q to the query channel as one whole message.
func (p Pair) WriteQuery(ctx context.Context, q protocol.Query) error {
	return WithWriter(ctx, p.Query, func(w io.Writer) error {
		return protocol.WriteQuery(w, q)
	})
}

// ReadQuery reads one whole message from the query channel and decodes it.
func (p Pair) ReadQuery(ctx context.Context) (q protocol.Query, err error) {
	err = WithReader(ctx, p.Query, p.maxPayload(), func(r io.Reader) (err error) {
		q, err = protocol.ReadQuery(r)
		return err
	})

	return q, err
}

// WriteReply writes r to the reply channel as one whole message.
func (p Pair) WriteReply(ctx context.Context, r protocol.Reply) error {
	return WithWriter(ctx, p.Reply, func(w io.Writer) error {
		return protocol.WriteReply(w, r)
	})
}

// ReadReply reads one whole message from the reply channel and decodes it.
func (p Pair) ReadReply(ctx context.Context) (r protocol.Reply, err error) {
	err = WithReader(ctx, p.Reply, p.maxPayload(), func(rd io.Reader) (err error) {
		r, err = protocol.ReadReply(rd)
		return err
	})

	return r, err
}

// WithWriter opens ch for write, hands the write end to fn and closes it
// again, whatever fn returns. Closing is what tells the reader the message
// is complete.
func WithWriter(ctx context.Context, ch Channel, fn func(w io.Writer) error) (err error) {
	w, err := ch.OpenWrite(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := w.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("Failed to close %s: %w", ch, cerr))
		}
	}()

	return fn(w)
}

// WithReader opens ch for read, hands fn a reader bounded to maxPayload bytes
// and closes the read end again, whatever fn returns.
func WithReader(ctx context.Context, ch Channel, maxPayload int64, fn func(r io.Reader) error) (err error) {
	r, err := ch.OpenRead(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := r.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("Failed to close %s: %w", ch, cerr))
		}
	}()

	return fn(&boundedReader{r: r, remaining: maxPayload})
}

// boundedReader fails, rather than truncates, once more than remaining bytes
// have been read. On overflow the rest of the stream is discarded first, so
// the writer can finish its message and go on to read the error reply.
type boundedReader struct {
	r         io.Reader
	remaining int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, errPayloadTooLarge()
	}

	// Allow one extra byte so we can tell "exactly at the limit" from "over"
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}

	n, err := b.r.Read(p)
	b.remaining -= int64(n)

	if b.remaining < 0 {
		io.Copy(io.Discard, b.r)
		return n, errPayloadTooLarge()
	}

	return n, err
}

func errPayloadTooLarge() error {
	return protocol.NewError(protocol.KindPayloadError, "payload too large")
}

package transport

import (
	"context"
	"io"
)

// Rendezvous is an in-process channel with the same blocking open semantics
// as a named pipe: OpenWrite blocks until a reader calls OpenRead and vice
// versa. Each rendezvous hands over a fresh io.Pipe, so a message ends when
// the writer closes its end.
type Rendezvous struct {
	name    string
	handoff chan *io.PipeReader
}

func NewRendezvous(name string) *Rendezvous {
	return &Rendezvous{
		name:    name,
		handoff: make(chan *io.PipeReader),
	}
}

// NewRendezvousPair returns a channel pair that lives entirely in this
// process, for running a solver and a problem server side by side.
func NewRendezvousPair() Pair {
	return Pair{
		Query: NewRendezvous("query"),
		Reply: NewRendezvous("reply"),
	}
}

func (r *Rendezvous) String() string {
	return r.name
}

func (r *Rendezvous) OpenWrite(ctx context.Context) (io.WriteCloser, error) {
	pr, pw := io.Pipe()

	select {
	case r.handoff <- pr:
		return pw, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Rendezvous) OpenRead(ctx context.Context) (io.ReadCloser, error) {
	select {
	case pr := <-r.handoff:
		return pr, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ Channel = (*Rendezvous)(nil)
var _ Channel = (*FIFO)(nil)

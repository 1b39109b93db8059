package transport

import (
	"go.uber.org/zap"
)

const (
	// DefaultMaxPayload bounds the size of a single message when no limit
	// is configured.
	DefaultMaxPayload = 1 << 20
)

type Options struct {
	// MaxPayload bounds the size of a single message read from a channel.
	// Zero means DefaultMaxPayload.
	MaxPayload int64

	// Create makes missing FIFOs instead of failing with NoFile
	Create bool

	// Mode is the permission of created FIFOs
	Mode uint32

	Log *zap.Logger
}

func (o Options) mode() uint32 {
	if o.Mode == 0 {
		return 0600
	}

	return o.Mode
}

func (o Options) log() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}

	return o.Log
}

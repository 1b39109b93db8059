package transport

import (
	"context"
	"errors"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/luma/elpida/protocol"
)

// FIFO is a channel backed by a POSIX named pipe. The kernel provides the
// rendezvous: opening one end blocks until the other end is opened.
type FIFO struct {
	path string
	log  *zap.Logger
}

// NewFIFO returns a channel for the named pipe at path. The pipe is not
// checked or created, see CheckFIFO and EnsureFIFO.
func NewFIFO(path string, log *zap.Logger) *FIFO {
	if log == nil {
		log = zap.NewNop()
	}

	return &FIFO{
		path: path,
		log:  log.With(zap.String("path", path)),
	}
}

// OpenFIFOPair checks both named pipes, creating them first if
// options.Create is set, and returns them as a channel pair.
func OpenFIFOPair(query, reply string, options Options) (Pair, error) {
	log := options.log()

	for _, path := range []string{query, reply} {
		var err error
		if options.Create {
			err = EnsureFIFO(path, options.mode())
		} else {
			err = CheckFIFO(path)
		}

		if err != nil {
			log.Error("Channel endpoint is unusable", zap.String("path", path), zap.Error(err))
			return Pair{}, err
		}
	}

	return Pair{
		Query:      NewFIFO(query, log.Named("query")),
		Reply:      NewFIFO(reply, log.Named("reply")),
		MaxPayload: options.MaxPayload,
	}, nil
}

func (f *FIFO) String() string {
	return f.path
}

func (f *FIFO) OpenWrite(ctx context.Context) (io.WriteCloser, error) {
	file, err := f.open(ctx, os.O_WRONLY)
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (f *FIFO) OpenRead(ctx context.Context) (io.ReadCloser, error) {
	file, err := f.open(ctx, os.O_RDONLY)
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (f *FIFO) open(ctx context.Context, flag int) (*os.File, error) {
	f.log.Debug("Waiting for peer", zap.Bool("write", flag == os.O_WRONLY))

	// Without a way to cancel there is no need for the extra goroutine
	if ctx.Done() == nil {
		file, err := os.OpenFile(f.path, flag, 0)
		return file, f.classify(err)
	}

	type result struct {
		file *os.File
		err  error
	}

	done := make(chan result, 1)

	go func() {
		file, err := os.OpenFile(f.path, flag, 0)
		done <- result{file: file, err: err}
	}()

	select {
	case res := <-done:
		return res.file, f.classify(res.err)

	case <-ctx.Done():
		// The pending open can only return once a peer shows up, so become
		// that peer for an instant. Opening a FIFO read-write never blocks.
		if err := f.wake(); err != nil {
			f.log.Warn("Failed to wake pending open", zap.Error(err))
		}

		if res := <-done; res.file != nil {
			res.file.Close()
		}

		return nil, ctx.Err()
	}
}

func (f *FIFO) wake() error {
	fd, err := unix.Open(f.path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}

	return unix.Close(fd)
}

func (f *FIFO) classify(err error) error {
	if err == nil {
		f.log.Debug("Opened")
		return nil
	}

	return classifyPathError(f.path, err)
}

// CheckFIFO verifies that path exists and is a named pipe.
func CheckFIFO(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return classifyPathError(path, err)
	}

	if info.Mode()&os.ModeNamedPipe == 0 {
		return protocol.NewError(protocol.KindNotFIFO, "`%s` file is not a FIFO named pipe", path)
	}

	return nil
}

// EnsureFIFO creates the named pipe at path if nothing exists there yet, then
// checks it.
func EnsureFIFO(path string, mode uint32) error {
	err := CheckFIFO(path)
	if !errors.Is(err, protocol.ErrNoFile) {
		return err
	}

	if err := unix.Mkfifo(path, mode); err != nil && !errors.Is(err, unix.EEXIST) {
		return protocol.WrapError(protocol.KindUnreadable, err, "Failed to create FIFO `%s`", path)
	}

	return CheckFIFO(path)
}

func classifyPathError(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return protocol.WrapError(protocol.KindNoFile, err, "`%s` does not exist", path)

	default:
		return protocol.WrapError(protocol.KindUnreadable, err, "Failed to open `%s`", path)
	}
}

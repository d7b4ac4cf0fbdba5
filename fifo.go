package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/netgpio/netgpio"
)

var flog zerolog.Logger

func init() {
	flog = log.With().Str("component", "fifo").Logger()
}

// Writer is the write side of the device.
type Writer interface {
	Open() error
	Close() error
	Write(p []byte) (int, error)
}

// ServeSession reads one writer session, open to EOF, and plays it as a
// single message. An oversized session is drained and rejected.
func ServeSession(w Writer, r io.Reader) (int, error) {
	if err := w.Open(); err != nil {
		return 0, err
	}
	defer w.Close()

	msg, err := io.ReadAll(io.LimitReader(r, netgpio.MaxMessageSize))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", netgpio.ErrCopyFault, err)
	}
	if len(msg) >= netgpio.MaxMessageSize {
		drained, _ := io.Copy(io.Discard, r)
		return 0, fmt.Errorf("%w: %d+ bytes", netgpio.ErrMessageTooLarge, int64(len(msg))+drained)
	}

	return w.Write(msg)
}

// ServeFifo creates the named pipe at path if needed and plays every session
// written to it until ctx is done.
func ServeFifo(ctx context.Context, path string, w Writer) error {
	if err := ensureFifo(path); err != nil {
		return err
	}
	flog.Info().Str("path", path).Msg("Listening on named pipe")

	// Once ctx is done, keep opening and closing a write end so that a
	// reader blocked in open below wakes up and sees the cancellation.
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			if f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0); err == nil {
				f.Close()
			}
			select {
			case <-stopped:
				return
			case <-ticker.C:
			}
		}
	}()

	for {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			f.Close()
			return nil
		}

		n, err := ServeSession(w, f)
		f.Close()
		if err != nil {
			flog.Warn().Err(err).Msg("Message rejected")
			continue
		}
		flog.Debug().Int("bytes", n).Msg("Message played")
	}
}

func ensureFifo(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return mkfifo(path, 0o622)
	}
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeNamedPipe == 0 {
		return fmt.Errorf("%s exists and is not a named pipe", path)
	}
	return nil
}

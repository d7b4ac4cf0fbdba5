//go:build unix

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/netgpio/netgpio"
)

type recordingWriter struct {
	opened, closed int
	messages       chan string
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{messages: make(chan string, 4)}
}

func (w *recordingWriter) Open() error  { w.opened++; return nil }
func (w *recordingWriter) Close() error { w.closed++; return nil }

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.messages <- string(p)
	return len(p), nil
}

func TestServeSession(t *testing.T) {
	t.Run("WholeSessionIsOneMessage", func(t *testing.T) {
		w := newRecordingWriter()
		n, err := ServeSession(w, strings.NewReader("10101010\n01100110\n"))
		require.NoError(t, err)
		assert.Equal(t, 18, n)
		assert.Equal(t, "10101010\n01100110\n", <-w.messages)
		assert.Equal(t, 1, w.opened)
		assert.Equal(t, 1, w.closed)
	})

	t.Run("TooLarge", func(t *testing.T) {
		w := newRecordingWriter()
		r := strings.NewReader(strings.Repeat("1", 3000))
		_, err := ServeSession(w, r)
		assert.ErrorIs(t, err, netgpio.ErrMessageTooLarge)
		assert.Zero(t, r.Len(), "session drained")
		assert.Empty(t, w.messages)
	})
}

func TestServeFifo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netgpio")
	w := newRecordingWriter()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeFifo(ctx, path, w)
	}()

	require.Eventually(t, func() bool {
		info, err := os.Stat(path)
		return err == nil && info.Mode()&os.ModeNamedPipe != 0
	}, 2*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("101\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case msg := <-w.messages:
		assert.Equal(t, "101\n", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeFifo did not stop")
	}
}

func TestEnsureFifoRejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.Error(t, ensureFifo(path))
}

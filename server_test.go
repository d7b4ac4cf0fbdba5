package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"gregoryjjb/netgpio/gpio"
	"gregoryjjb/netgpio/netgpio"
	"gregoryjjb/netgpio/pinbank"
)

func newTestDevice(t *testing.T) (Device, *gpio.MemoryRegisters) {
	regs := gpio.NewMemoryRegisters()
	bank, err := pinbank.Configure(pinbank.DefaultDescription(), pinbank.DefaultPinout, gpio.NewRegisterDriver(regs, nil))
	require.NoError(t, err)

	return Device{
		Controller: netgpio.New(bank, netgpio.WithSettleDelay(0)),
		Pins:       bank.Pins(),
		Driver:     gpio.DriverMemory,
	}, regs
}

func TestRouter(t *testing.T) {
	dev, regs := newTestDevice(t)
	srv := httptest.NewServer(NewRouter(dev, BuildInfo{Version: "0.0.0"}))
	t.Cleanup(srv.Close)

	t.Run("WriteMessage", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/message", "text/plain", strings.NewReader("10101010 01100110"))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "17", resp.Header.Get("X-Bytes-Written"))
		assert.Equal(t, uint64(1), dev.Controller.TotalMessagesProcessed())
		for _, g := range pinbank.DefaultPinout {
			assert.False(t, regs.Level(g), "bank is dark after a message")
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/message", "text/plain", strings.NewReader(strings.Repeat("1", netgpio.MaxMessageSize)))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, uint64(1), dev.Controller.TotalMessagesProcessed())
	})

	t.Run("ReadIsNoop", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/message?count=16")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, body)
		assert.Equal(t, "16", resp.Header.Get("X-Bytes-Read"))
	})

	t.Run("ReadCountIsNotAllocated", func(t *testing.T) {
		for count, want := range map[string]string{
			"1125899906842624": "1125899906842624",
			"-5":               "0",
			"lots":             "0",
		} {
			resp, err := http.Get(srv.URL + "/api/message?count=" + count)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode, count)
			assert.Equal(t, want, resp.Header.Get("X-Bytes-Read"), count)
		}
	})

	t.Run("Status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		var status Status
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, pinbank.Width, status.Width)
		assert.Equal(t, "memory", status.Driver)
		require.Len(t, status.Pins, pinbank.Width)
		assert.Equal(t, "netgpio:bit0", status.Pins[0].Label)
		assert.Equal(t, "0x00000010", status.Pins[0].Mask)
		assert.Equal(t, uint64(1), status.TotalMessagesProcessed)
		assert.Equal(t, "10101010 01100110", status.LastMessage)
		require.Len(t, status.RecentFrames, 3)
		assert.Equal(t, "01100110", status.RecentFrames[1].String())
	})

	t.Run("Version", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/version")
		require.NoError(t, err)
		defer resp.Body.Close()

		var build BuildInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&build))
		assert.Equal(t, "0.0.0", build.Version)
	})
}

func TestRouter_ChunkedBody(t *testing.T) {
	dev, _ := newTestDevice(t)
	handler := NewRouter(dev, BuildInfo{})

	req := httptest.NewRequest(http.MethodPost, "/api/message", io.NopCloser(strings.NewReader("101")))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-Bytes-Written"))
}

func TestFramesWebsocket(t *testing.T) {
	dev, _ := newTestDevice(t)
	srv := httptest.NewServer(NewRouter(dev, BuildInfo{}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/frames", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The subscription is registered once the handler runs; retry the write
	// until the first frame arrives.
	frames := make(chan netgpio.Frame, 8)
	go func() {
		for {
			var f netgpio.Frame
			if err := wsjson.Read(ctx, conn, &f); err != nil {
				close(frames)
				return
			}
			frames <- f
		}
	}()

	var first netgpio.Frame
	require.Eventually(t, func() bool {
		if _, err := dev.Controller.Write([]byte("11001100")); err != nil {
			return false
		}
		select {
		case first = <-frames:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, "11001100", first.String())
	blank := <-frames
	assert.True(t, blank.Blank)
}

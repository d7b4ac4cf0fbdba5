package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"gregoryjjb/netgpio/netgpio"
)

// createWebsocketHandler streams each dispatched frame as JSON until the
// client goes away.
func createWebsocketHandler(c *netgpio.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %s", err), http.StatusInternalServerError)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "stream ended")

		ctx := conn.CloseRead(r.Context())

		unsubscribe, frames := c.Subscribe()
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if err := writeTimeout(ctx, 5*time.Second, conn, frame); err != nil {
					slog.Debug().Err(err).Msg("Websocket write failed")
					return
				}
			}
		}
	}
}

func writeTimeout(ctx context.Context, timeout time.Duration, c *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return wsjson.Write(ctx, c, v)
}

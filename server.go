package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/netgpio/netgpio"
	"gregoryjjb/netgpio/pinbank"
)

var slog zerolog.Logger

func init() {
	slog = log.With().Str("component", "server").Logger()
}

/////////////////////
// Response helpers

func RespondError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func RespondJSON(w http.ResponseWriter, body any) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		RespondError(w, http.StatusInternalServerError, err)
	}
}

type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	Commit    string `json:"commit"`
}

type PinStatus struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	GPIO  int    `json:"gpio"`
	Mask  string `json:"mask"`
}

type Status struct {
	Width                  int             `json:"width"`
	Driver                 string          `json:"driver"`
	Pins                   []PinStatus     `json:"pins"`
	TotalMessagesProcessed uint64          `json:"total_messages_processed"`
	LastMessage            string          `json:"last_message"`
	RecentFrames           []netgpio.Frame `json:"recent_frames"`
}

// Device is what the HTTP surface needs from the daemon.
type Device struct {
	Controller *netgpio.Controller
	Pins       []pinbank.Pin
	Driver     string
}

func NewRouter(dev Device, build BuildInfo) chi.Router {
	r := chi.NewRouter()
	r.Use(LoggerMiddleware(&slog))

	r.Route("/api", func(r chi.Router) {
		r.Post("/message", func(w http.ResponseWriter, r *http.Request) {
			dev.Controller.Open()
			defer dev.Controller.Close()

			n, err := writeBody(dev.Controller, r)
			switch {
			case errors.Is(err, netgpio.ErrMessageTooLarge):
				RespondError(w, http.StatusRequestEntityTooLarge, err)
			case errors.Is(err, netgpio.ErrCopyFault):
				RespondError(w, http.StatusBadRequest, err)
			case err != nil:
				RespondError(w, http.StatusInternalServerError, err)
			default:
				w.Header().Set("X-Bytes-Written", strconv.Itoa(n))
				w.WriteHeader(http.StatusNoContent)
			}
		})

		// Reads never return data.
		r.Get("/message", func(w http.ResponseWriter, r *http.Request) {
			dev.Controller.Open()
			defer dev.Controller.Close()

			count, _ := strconv.Atoi(r.URL.Query().Get("count"))
			n := dev.Controller.ReadCount(count)
			w.Header().Set("X-Bytes-Read", strconv.Itoa(n))
			w.WriteHeader(http.StatusOK)
		})

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			pins := make([]PinStatus, 0, len(dev.Pins))
			for _, p := range dev.Pins {
				pins = append(pins, PinStatus{
					Index: p.Index,
					Label: p.Label,
					GPIO:  p.GPIO,
					Mask:  fmt.Sprintf("%#08x", p.Mask),
				})
			}

			RespondJSON(w, Status{
				Width:                  dev.Controller.Width(),
				Driver:                 dev.Driver,
				Pins:                   pins,
				TotalMessagesProcessed: dev.Controller.TotalMessagesProcessed(),
				LastMessage:            dev.Controller.Message(),
				RecentFrames:           dev.Controller.RecentFrames(),
			})
		})

		r.Get("/frames", createWebsocketHandler(dev.Controller))

		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			RespondJSON(w, build)
		})
	})

	return r
}

// writeBody hands the request body to the controller. With a known length
// the body is copied straight into the message buffer; otherwise it is read
// up to the limit first.
func writeBody(c *netgpio.Controller, r *http.Request) (int, error) {
	if r.ContentLength >= 0 {
		return c.WriteFrom(r.Body, int(r.ContentLength))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, netgpio.MaxMessageSize))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", netgpio.ErrCopyFault, err)
	}
	return c.Write(body)
}

func StartServer(ctx context.Context, address string, handler http.Handler) error {
	srv := &http.Server{
		Addr:    address,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	slog.Info().Str("listen", address).Msg("Launching server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

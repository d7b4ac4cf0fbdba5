// Package netgpio turns textual bit messages into frames on a pin bank.
//
// A message such as "10101010 01100110" is decoded into groups of bank
// width bits. Each group is shown for the settle delay, a trailing partial
// group is padded with zeros, and the bank is cleared when the message ends.
package netgpio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/netgpio/circularbuffer"
	"gregoryjjb/netgpio/pubsub"
)

// MaxMessageSize bounds a single message. A message must be strictly
// shorter so the buffer always has room for the terminator.
const MaxMessageSize = 1024

// DefaultSettleDelay is how long each frame stays on the bank.
const DefaultSettleDelay = 200 * time.Millisecond

var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrCopyFault       = errors.New("message could not be copied")
)

// Bank is the pin bank the controller drives.
type Bank interface {
	Width() int
	SetStates(states []bool) error
}

// Frame is one dispatch to the bank.
type Frame struct {
	Seq     uint64    `json:"seq"`
	Message uint64    `json:"message"`
	States  []bool    `json:"states"`
	Padded  bool      `json:"padded,omitempty"`
	Blank   bool      `json:"blank,omitempty"`
	At      time.Time `json:"at"`
}

// String renders the frame as '1' and '0' characters.
func (f Frame) String() string {
	b := make([]byte, len(f.States))
	for i, s := range f.States {
		if s {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

// Controller serializes writers onto a single bank. The lock is held for the
// whole message, settle delays included, so frames from different writers
// never interleave.
type Controller struct {
	mu     sync.Mutex
	bank   Bank
	buf    [MaxMessageSize + 1]byte
	length int
	seq    uint64

	processed atomic.Uint64

	settle  time.Duration
	sleep   func(time.Duration)
	log     zerolog.Logger
	ps      *pubsub.Pubsub[Frame]
	history *circularbuffer.CircularBuffer[Frame]
}

type Option func(*Controller)

func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.settle = d
	}
}

// WithSleeper replaces time.Sleep for the settle delay.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithHistory keeps the last n frames for RecentFrames.
func WithHistory(n int) Option {
	return func(c *Controller) {
		c.history = circularbuffer.New[Frame](n)
	}
}

func New(bank Bank, options ...Option) *Controller {
	c := &Controller{
		bank:    bank,
		settle:  DefaultSettleDelay,
		sleep:   time.Sleep,
		log:     log.With().Str("component", "netgpio").Logger(),
		ps:      pubsub.New[Frame](64),
		history: circularbuffer.New[Frame](32),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Open always succeeds; the endpoint has no per-open state.
func (c *Controller) Open() error {
	c.log.Trace().Msg("open")
	return nil
}

// Close always succeeds.
func (c *Controller) Close() error {
	c.log.Trace().Msg("close")
	return nil
}

// Write plays p on the bank. It blocks until every frame has been shown.
func (c *Controller) Write(p []byte) (int, error) {
	return c.WriteFrom(bytes.NewReader(p), len(p))
}

// WriteFrom copies exactly length bytes from src into the message buffer and
// plays them. A message of MaxMessageSize bytes or more is rejected before
// anything is read.
func (c *Controller) WriteFrom(src io.Reader, length int) (int, error) {
	if length < 0 || length >= MaxMessageSize {
		c.log.Info().Int("length", length).Int("max", MaxMessageSize).Msg("Message rejected, too large")
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, length, MaxMessageSize-1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.ReadFull(src, c.buf[:length]); err != nil {
		c.log.Info().Err(err).Msg("Bad copied value")
		c.length = 0
		return 0, fmt.Errorf("%w: %w", ErrCopyFault, err)
	}
	c.buf[length] = 0
	c.length = length

	id := c.processed.Load() + 1
	c.log.Debug().Uint64("message", id).Bytes("content", c.buf[:length]).Msg("Message received")

	width := c.bank.Width()
	frames := Decode(c.buf[:length], width)
	partial := width > 0 && countBits(c.buf[:length])%width != 0
	for i, states := range frames {
		c.dispatch(id, states, partial && i == len(frames)-1, false)
		c.sleep(c.settle)
	}
	c.dispatch(id, make([]bool, width), false, true)

	c.processed.Add(1)
	c.log.Debug().Uint64("message", id).Int("frames", len(frames)).Msg("Message processed")

	return length, nil
}

func (c *Controller) dispatch(message uint64, states []bool, padded, blank bool) {
	c.seq++
	frame := Frame{
		Seq:     c.seq,
		Message: message,
		States:  states,
		Padded:  padded,
		Blank:   blank,
		At:      time.Now(),
	}

	if err := c.bank.SetStates(states); err != nil {
		c.log.Error().Err(err).Uint64("seq", frame.Seq).Msg("Failed to set pin states")
	}

	c.log.Trace().Uint64("seq", frame.Seq).Str("frame", frame.String()).Msg("Frame")
	c.history.Push(frame)
	c.ps.Publish(frame)
}

// Read reports len(p) bytes read without writing anything to p. The device
// has never returned data from a read. Do not pass the controller to
// io.Copy or similar helpers as a reader.
func (c *Controller) Read(p []byte) (int, error) {
	return c.ReadCount(len(p)), nil
}

// ReadCount is Read for callers that only have a count, such as the HTTP
// endpoint. Nothing is allocated; a negative count reads 0.
func (c *Controller) ReadCount(count int) int {
	count = max(count, 0)
	c.log.Trace().Int("count", count).Msg("read")
	return count
}

// TotalMessagesProcessed is a diagnostic counter of successful writes.
func (c *Controller) TotalMessagesProcessed() uint64 {
	return c.processed.Load()
}

// Message returns the last message held in the buffer. It waits for any
// write in progress.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf[:c.length])
}

// Subscribe streams every dispatched frame until the returned func is called.
func (c *Controller) Subscribe() (func(), <-chan Frame) {
	id, ch := c.ps.Subscribe()
	return func() {
		c.ps.Unsubscribe(id)
	}, ch
}

// RecentFrames returns the retained frame history, oldest first.
func (c *Controller) RecentFrames() []Frame {
	return c.history.Snapshot()
}

func (c *Controller) Width() int {
	return c.bank.Width()
}

// Package bridge implements the pack side of the host/pack message
// protocol: correlated request/response calls over an unordered transport,
// plus the handshake and render dispatch that ride the same channel.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/clipcompanion/packbridge/internal/logx"
	"github.com/clipcompanion/packbridge/wire"
)

// Transport moves opaque messages across the sandbox boundary. Messages may
// be delivered in any order relative to the requests that caused them.
// Write must be safe for concurrent use; calls are issued while other
// goroutines answer inbound traffic on the same connection.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

type result struct {
	data json.RawMessage
	err  error
}

// Bridge issues correlated calls to the host and routes inbound messages.
// Construct one per transport; correlation state must never be split across
// instances.
type Bridge struct {
	tr      Transport
	timeout time.Duration
	render  func(wire.Render)

	mu      sync.Mutex
	next    uint64
	pending map[string]chan result
	ready   bool
	gameID  string
	config  json.RawMessage
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRequestTimeout bounds every call with a deadline. Zero keeps calls
// pending until the host answers or the caller's context ends.
func WithRequestTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithRenderHandler registers the callback for host:render directives.
func WithRenderHandler(fn func(wire.Render)) Option {
	return func(b *Bridge) { b.render = fn }
}

// New constructs a Bridge over tr.
func New(tr Transport, opts ...Option) *Bridge {
	b := &Bridge{tr: tr, pending: make(map[string]chan result)}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SendReady announces the pack to the host. Fire-and-forget; the message is
// not tracked in the pending table.
func (b *Bridge) SendReady(ctx context.Context) error {
	data, err := json.Marshal(wire.NewReady())
	if err != nil {
		return err
	}
	return b.tr.Write(ctx, data)
}

// Call allocates a correlation id, passes it to build to obtain the concrete
// request message, transmits it, and suspends the caller until the matching
// host:response arrives or ctx ends. Any number of calls may be in flight
// concurrently; each settles exactly once with its own payload.
func (b *Bridge) Call(ctx context.Context, build func(id string) any) (json.RawMessage, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	ch := make(chan result, 1)
	b.mu.Lock()
	b.next++
	id := strconv.FormatUint(b.next, 10)
	b.pending[id] = ch
	b.mu.Unlock()

	data, err := json.Marshal(build(id))
	if err != nil {
		b.evict(id)
		return nil, err
	}
	if err := b.tr.Write(ctx, data); err != nil {
		b.evict(id)
		return nil, err
	}

	select {
	case <-ctx.Done():
		b.evict(id)
		return nil, ctx.Err()
	case res := <-ch:
		return res.data, res.err
	}
}

func (b *Bridge) evict(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// Handle dispatches one inbound message. Responses with no pending entry
// and unrecognized message types are ignored; the bridge never fails on
// inbound traffic.
func (b *Bridge) Handle(data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		logx.Log.Debug().Err(err).Msg("drop malformed message")
		return
	}
	switch m := msg.(type) {
	case wire.Init:
		b.mu.Lock()
		b.ready = true
		b.gameID = m.GameID
		b.config = m.Config
		b.mu.Unlock()
		logx.Log.Info().Str("game_id", m.GameID).Msg("host handshake")
	case wire.Response:
		if m.Type == wire.TypeHostResponse {
			b.settle(m)
		}
	case wire.Render:
		if b.render != nil {
			b.render(m)
		}
	}
}

func (b *Bridge) settle(m wire.Response) {
	b.mu.Lock()
	ch, ok := b.pending[m.ID]
	if ok {
		delete(b.pending, m.ID)
	}
	b.mu.Unlock()
	if !ok {
		// Already settled, timed out, or spurious.
		return
	}
	if m.Success {
		ch <- result{data: m.Data}
		return
	}
	errMsg := m.Error
	if errMsg == "" {
		errMsg = "unknown error"
	}
	ch <- result{err: errors.New(errMsg)}
}

// Abort fails every pending call with err. Called when the transport is
// known dead; a merely silent host leaves calls pending.
func (b *Bridge) Abort(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]chan result)
	b.mu.Unlock()
	for _, ch := range pending {
		ch <- result{err: err}
	}
}

// Run reads the transport and dispatches messages until ctx ends or the
// transport fails. Pending calls are aborted on exit.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		data, err := b.tr.Read(ctx)
		if err != nil {
			b.Abort(err)
			return err
		}
		b.Handle(data)
	}
}

// Ready reports whether the host handshake has been observed.
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// GameID returns the identity supplied by the last host:init.
func (b *Bridge) GameID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gameID
}

// Config returns the raw configuration supplied by the last host:init.
func (b *Bridge) Config() json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config
}

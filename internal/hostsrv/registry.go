// Package hostsrv implements the host side of the pack protocol: it
// accepts pack connections, answers their cache requests from the
// configured store, and issues correlated lifecycle commands.
package hostsrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clipcompanion/packbridge/bridge"
	"github.com/clipcompanion/packbridge/internal/cachestore"
	"github.com/clipcompanion/packbridge/internal/metrics"
	"github.com/clipcompanion/packbridge/wire"
)

// ErrPackNotConnected is returned when a command targets a game with no
// live pack.
var ErrPackNotConnected = errors.New("pack not connected")

// PackConn is one connected pack. Writes are serialized so concurrent
// cache responses and commands never interleave frames.
type PackConn struct {
	ID          string
	Name        string
	GameID      string
	Slug        string
	ConnectedAt time.Time

	tr  bridge.Transport
	wmu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan wire.Response
}

func newPackConn(tr bridge.Transport, name, gameID, slug string) *PackConn {
	return &PackConn{
		ID:          uuid.NewString(),
		Name:        name,
		GameID:      gameID,
		Slug:        slug,
		ConnectedAt: time.Now(),
		tr:          tr,
		pending:     make(map[string]chan wire.Response),
	}
}

func (p *PackConn) send(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.tr.Write(ctx, data)
}

// Render sends a host:render directive. Fire-and-forget.
func (p *PackConn) Render(ctx context.Context, componentType string, props json.RawMessage) error {
	return p.send(ctx, wire.Render{Type: wire.TypeHostRender, ComponentType: componentType, Props: props})
}

// Command issues one lifecycle command and waits for the pack's response.
// The correlation id is assigned here; callers leave cmd.ID empty.
func (p *PackConn) Command(ctx context.Context, cmd wire.Command) (wire.Response, error) {
	cmd.ID = uuid.NewString()
	ch := make(chan wire.Response, 1)
	p.mu.Lock()
	p.pending[cmd.ID] = ch
	p.mu.Unlock()

	if err := p.send(ctx, cmd); err != nil {
		p.evict(cmd.ID)
		metrics.RecordCommand(string(cmd.Type), false)
		return wire.Response{}, err
	}

	select {
	case <-ctx.Done():
		p.evict(cmd.ID)
		metrics.RecordCommand(string(cmd.Type), false)
		return wire.Response{}, ctx.Err()
	case resp := <-ch:
		metrics.RecordCommand(string(cmd.Type), resp.Success)
		return resp, nil
	}
}

func (p *PackConn) evict(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// settle delivers one pack:response. Responses with no pending entry are
// dropped.
func (p *PackConn) settle(resp wire.Response) {
	p.mu.Lock()
	ch, ok := p.pending[resp.ID]
	if ok {
		delete(p.pending, resp.ID)
	}
	p.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// abort fails every pending command. Called once when the connection dies.
func (p *PackConn) abort() {
	p.mu.Lock()
	pending := p.pending
	p.pending = make(map[string]chan wire.Response)
	p.mu.Unlock()
	for _, ch := range pending {
		ch <- wire.Fail(wire.TypePackResponse, "", "pack disconnected")
	}
}

// PackInfo is the state snapshot of one connected pack.
type PackInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	GameID      string    `json:"game_id"`
	Slug        string    `json:"slug,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Registry tracks connected packs, at most one per game.
type Registry struct {
	store       cachestore.Store
	timeout     time.Duration
	gameConfigs map[string]any

	draining atomic.Bool

	mu    sync.RWMutex
	packs map[string]*PackConn
}

// StartDrain stops the registry from accepting new packs. Existing
// connections keep being served.
func (r *Registry) StartDrain() { r.draining.Store(true) }

// IsDraining reports whether new pack connections are being refused.
func (r *Registry) IsDraining() bool { return r.draining.Load() }

// NewRegistry constructs a Registry backed by store. timeout bounds command
// round trips; zero leaves them bounded only by the caller's context.
// gameConfigs maps game ids to the config blob sent in host:init.
func NewRegistry(store cachestore.Store, timeout time.Duration, gameConfigs map[string]any) *Registry {
	return &Registry{
		store:       store,
		timeout:     timeout,
		gameConfigs: gameConfigs,
		packs:       make(map[string]*PackConn),
	}
}

func (r *Registry) add(p *PackConn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.packs[p.GameID]; ok {
		return fmt.Errorf("game %q already has a connected pack", p.GameID)
	}
	r.packs[p.GameID] = p
	return nil
}

func (r *Registry) remove(p *PackConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.packs[p.GameID]; ok && cur.ID == p.ID {
		delete(r.packs, p.GameID)
	}
}

// Pack returns the connected pack for gameID.
func (r *Registry) Pack(gameID string) (*PackConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packs[gameID]
	return p, ok
}

// Command issues cmd to the pack serving gameID, applying the registry's
// request timeout.
func (r *Registry) Command(ctx context.Context, gameID string, cmd wire.Command) (wire.Response, error) {
	p, ok := r.Pack(gameID)
	if !ok {
		return wire.Response{}, ErrPackNotConnected
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return p.Command(ctx, cmd)
}

// Snapshot returns the connected packs sorted by game id.
func (r *Registry) Snapshot() []PackInfo {
	r.mu.RLock()
	infos := make([]PackInfo, 0, len(r.packs))
	for _, p := range r.packs {
		infos = append(infos, PackInfo{
			ID:          p.ID,
			Name:        p.Name,
			GameID:      p.GameID,
			Slug:        p.Slug,
			ConnectedAt: p.ConnectedAt,
		})
	}
	r.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].GameID < infos[j].GameID })
	return infos
}

func (r *Registry) configFor(gameID string) json.RawMessage {
	cfg, ok := r.gameConfigs[gameID]
	if !ok {
		return nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	return raw
}

package hostsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/clipcompanion/packbridge/internal/cachestore"
	"github.com/clipcompanion/packbridge/internal/logx"
	"github.com/clipcompanion/packbridge/internal/metrics"
	ws "github.com/clipcompanion/packbridge/transport/ws"
	"github.com/clipcompanion/packbridge/wire"
)

// handshakeTimeout bounds how long a freshly accepted connection may sit
// silent before sending pack:ready.
const handshakeTimeout = 10 * time.Second

// WSHandler upgrades pack connections. The pack identifies itself through
// query parameters (game_id, slug, name, key); the first frame must be
// pack:ready, answered with host:init.
func WSHandler(reg *Registry, clientKey string, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reg.IsDraining() {
			http.Error(w, "draining", http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logx.Log.Debug().Err(err).Msg("websocket accept")
			return
		}
		if clientKey != "" && q.Get("key") != clientKey {
			_ = conn.Close(websocket.StatusPolicyViolation, "invalid client key")
			return
		}
		gameID := q.Get("game_id")
		if gameID == "" {
			_ = conn.Close(websocket.StatusPolicyViolation, "game_id required")
			return
		}

		tr := ws.New(conn)
		ctx := r.Context()

		readyCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
		data, err := tr.Read(readyCtx)
		cancel()
		if err != nil {
			_ = tr.Close()
			return
		}
		env, err := wire.Peek(data)
		if err != nil || env.Type != wire.TypePackReady {
			_ = conn.Close(websocket.StatusPolicyViolation, "expected pack:ready")
			return
		}

		p := newPackConn(tr, q.Get("name"), gameID, q.Get("slug"))
		if err := reg.add(p); err != nil {
			_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
			return
		}
		metrics.PackConnected()
		logx.Log.Info().Str("game_id", gameID).Str("pack", p.Name).Msg("pack connected")
		defer func() {
			reg.remove(p)
			p.abort()
			metrics.PackDisconnected()
			_ = tr.Close()
			logx.Log.Info().Str("game_id", gameID).Msg("pack disconnected")
		}()

		init := wire.Init{Type: wire.TypeHostInit, GameID: gameID, Config: reg.configFor(gameID)}
		if err := p.send(ctx, init); err != nil {
			return
		}
		readLoop(ctx, reg, p)
	}
}

// readLoop serves one pack until its transport fails. Cache requests run in
// their own goroutine so slow store operations never block responses to
// other requests; the per-connection write mutex keeps frames whole.
func readLoop(ctx context.Context, reg *Registry, p *PackConn) {
	for {
		data, err := p.tr.Read(ctx)
		if err != nil {
			return
		}
		env, err := wire.Peek(data)
		if err != nil {
			logx.Log.Debug().Err(err).Msg("drop malformed message")
			continue
		}
		switch {
		case wire.IsCacheOp(env.Type):
			go serveCache(ctx, reg.store, p, data)
		case env.Type == wire.TypePackResponse:
			var resp wire.Response
			if err := json.Unmarshal(data, &resp); err == nil {
				p.settle(resp)
			}
		default:
			// Repeated pack:ready and unknown types are ignored.
		}
	}
}

func serveCache(ctx context.Context, store cachestore.Store, p *PackConn, data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		return
	}
	start := time.Now()
	var op wire.Type
	var resp wire.Response
	switch m := msg.(type) {
	case wire.CacheRead:
		op = m.Type
		val, ok, err := store.Read(ctx, p.GameID, m.Key)
		switch {
		case err != nil:
			resp = wire.Fail(wire.TypeHostResponse, m.ID, err.Error())
		case !ok:
			resp = wire.OK(wire.TypeHostResponse, m.ID, json.RawMessage("null"))
		default:
			resp = wire.OK(wire.TypeHostResponse, m.ID, val)
		}
	case wire.CacheWrite:
		op = m.Type
		if err := store.Write(ctx, p.GameID, m.Key, m.Data); err != nil {
			resp = wire.Fail(wire.TypeHostResponse, m.ID, err.Error())
		} else {
			resp = wire.OK(wire.TypeHostResponse, m.ID, json.RawMessage(`{"success":true}`))
		}
	case wire.CacheExists:
		op = m.Type
		ok, err := store.Exists(ctx, p.GameID, m.Key)
		if err != nil {
			resp = wire.Fail(wire.TypeHostResponse, m.ID, err.Error())
		} else {
			raw, _ := json.Marshal(ok)
			resp = wire.OK(wire.TypeHostResponse, m.ID, raw)
		}
	case wire.CacheGetSize:
		op = m.Type
		u, err := store.Usage(ctx, p.GameID)
		if err != nil {
			resp = wire.Fail(wire.TypeHostResponse, m.ID, err.Error())
		} else {
			raw, _ := json.Marshal(u)
			resp = wire.OK(wire.TypeHostResponse, m.ID, raw)
		}
	case wire.CacheClear:
		op = m.Type
		if err := store.Clear(ctx, p.GameID); err != nil {
			resp = wire.Fail(wire.TypeHostResponse, m.ID, err.Error())
		} else {
			resp = wire.OK(wire.TypeHostResponse, m.ID, json.RawMessage(`{"success":true}`))
		}
	default:
		return
	}
	metrics.ObserveCacheRequest(string(op), resp.Success, time.Since(start))
	if err := p.send(ctx, resp); err != nil {
		logx.Log.Debug().Err(err).Str("game_id", p.GameID).Msg("send cache response")
	}
}

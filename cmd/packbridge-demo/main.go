// Command packbridge-demo is a reference pack agent. It watches for a game
// process, reports status to the host, and records match history through
// the host cache.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/clipcompanion/packbridge/bridge"
	"github.com/clipcompanion/packbridge/internal/config"
	"github.com/clipcompanion/packbridge/internal/logx"
	"github.com/clipcompanion/packbridge/internal/reconnect"
	"github.com/clipcompanion/packbridge/pack"
	"github.com/clipcompanion/packbridge/transport/ws"
	"github.com/clipcompanion/packbridge/wire"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.PackConfig
	cfg.SetDefaults()
	cfg.ApplyEnv()
	cfg.BindFlags()
	flag.Parse()
	if *showVersion {
		fmt.Printf("packbridge-demo version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	logx.Configure(cfg.LogLevel)
	if cfg.GameID == "" {
		logx.Log.Fatal().Msg("--game-id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	query := url.Values{}
	query.Set("game_id", cfg.GameID)
	query.Set("slug", cfg.Slug)
	query.Set("name", cfg.PackName)
	query.Set("protocol", strconv.Itoa(pack.ProtocolVersion))
	if cfg.ClientKey != "" {
		query.Set("key", cfg.ClientKey)
	}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		err := runOnce(ctx, cfg, query)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// Host asked for shutdown.
			logx.Log.Info().Msg("pack shut down by host")
			return
		}
		if !cfg.Reconnect {
			logx.Log.Fatal().Err(err).Msg("connection lost")
		}
		if time.Since(start) > time.Minute {
			attempt = 0
		}
		d := reconnect.Delay(attempt)
		logx.Log.Warn().Err(err).Dur("retry_in", d).Msg("connection lost; reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
}

func runOnce(ctx context.Context, cfg config.PackConfig, query url.Values) error {
	tr, err := ws.Dial(ctx, cfg.ServerURL, query)
	if err != nil {
		return err
	}
	h := &gameHandler{processName: cfg.ProcessName, gameID: cfg.GameID, slug: cfg.Slug}
	runner := pack.NewRunner(tr, h)
	h.cache = runner.Cache()
	logx.Log.Info().Str("server", cfg.ServerURL).Str("game_id", cfg.GameID).Msg("connected to host")
	return runner.Run(ctx)
}

// gameHandler implements the pack lifecycle against a local game process.
type gameHandler struct {
	pack.UnimplementedHandler

	processName string
	gameID      string
	slug        string
	cache       bridge.Cache

	mu      sync.Mutex
	started time.Time
}

func (h *gameHandler) OnInit(init wire.Init) {
	logx.Log.Info().Str("game_id", init.GameID).Msg("host handshake complete")
}

func (h *gameHandler) OnRender(render wire.Render) {
	logx.Log.Info().Str("component", render.ComponentType).RawJSON("props", render.Props).Msg("render directive")
}

func (h *gameHandler) DetectRunning(ctx context.Context) bool {
	if h.processName == "" {
		return false
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err == nil && strings.EqualFold(name, h.processName) {
			return true
		}
	}
	return false
}

func (h *gameHandler) Status(ctx context.Context) pack.GameStatus {
	if !h.DetectRunning(ctx) {
		return pack.StatusDisconnected()
	}
	st := pack.StatusConnected("Process running")
	h.mu.Lock()
	st.IsInGame = !h.started.IsZero()
	h.mu.Unlock()
	return st
}

func (h *gameHandler) SessionStart(ctx context.Context) json.RawMessage {
	h.mu.Lock()
	h.started = time.Now()
	started := h.started
	h.mu.Unlock()
	logx.Log.Info().Time("started_at", started).Msg("session started")
	raw, _ := json.Marshal(map[string]any{"startedAt": started.Unix()})
	return raw
}

func (h *gameHandler) SessionEnd(ctx context.Context, sessionCtx json.RawMessage) *pack.MatchData {
	h.mu.Lock()
	started := h.started
	h.started = time.Time{}
	h.mu.Unlock()
	if started.IsZero() {
		return nil
	}
	md := &pack.MatchData{
		GameSlug: h.slug,
		GameID:   h.gameID,
		Result:   "unknown",
		Details:  sessionCtx,
	}
	key := "match:" + strconv.FormatInt(started.Unix(), 10)
	if err := h.cache.Write(ctx, key, md); err != nil {
		logx.Log.Warn().Err(err).Str("key", key).Msg("persist match")
	}
	return md
}

func (h *gameHandler) Shutdown(ctx context.Context) {
	logx.Log.Info().Msg("shutdown requested")
}

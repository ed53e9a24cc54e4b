package pack

import (
	"context"
	"encoding/json"

	"github.com/clipcompanion/packbridge/wire"
)

// Handler is implemented by game integrations. The Runner dispatches host
// lifecycle commands to it and reports its answers back over the wire.
type Handler interface {
	// OnInit is called when the host handshake is observed.
	OnInit(init wire.Init)

	// OnRender is called for host:render directives.
	OnRender(render wire.Render)

	// DetectRunning reports whether the game client/process is running.
	// Called periodically so the host can notice launches and exits.
	DetectRunning(ctx context.Context) bool

	// Status returns the current connection and game state.
	Status(ctx context.Context) GameStatus

	// PollEvents returns events observed since the last poll. Called
	// frequently during active games.
	PollEvents(ctx context.Context) []GameEvent

	// LiveData returns in-game statistics for the UI, or nil when not in
	// a game.
	LiveData(ctx context.Context) json.RawMessage

	// SessionStart is called when a game session begins. The returned
	// context is handed back to SessionEnd.
	SessionStart(ctx context.Context) json.RawMessage

	// SessionEnd is called when a game session ends. It returns the match
	// record to persist, or nil when none was produced.
	SessionEnd(ctx context.Context, sessionCtx json.RawMessage) *MatchData

	// ResolveEventIcon returns an icon URL for an event key discovered at
	// runtime. ok is false when no icon is known.
	ResolveEventIcon(ctx context.Context, eventKey string) (url string, ok bool)

	// MatchInProgress reports whether the given match is still running.
	// Called during stale-match recovery (host restart, pack reload).
	MatchInProgress(ctx context.Context, subpack int, externalMatchID string) MatchProgress

	// MatchTimeline returns timeline entries for a match being recovered,
	// or nil when none are available.
	MatchTimeline(ctx context.Context, query TimelineQuery) json.RawMessage

	// SampleMatchData returns randomized but schema-valid match data for
	// UI previews, or nil when the pack offers none.
	SampleMatchData(ctx context.Context, subpack int) json.RawMessage

	// Shutdown is called before the runner exits.
	Shutdown(ctx context.Context)
}

// UnimplementedHandler provides inert defaults for every Handler method.
// Embed it to stay forward-compatible as the command set grows.
type UnimplementedHandler struct{}

func (UnimplementedHandler) OnInit(wire.Init)     {}
func (UnimplementedHandler) OnRender(wire.Render) {}

func (UnimplementedHandler) DetectRunning(context.Context) bool { return false }

func (UnimplementedHandler) Status(context.Context) GameStatus { return StatusDisconnected() }

func (UnimplementedHandler) PollEvents(context.Context) []GameEvent { return nil }

func (UnimplementedHandler) LiveData(context.Context) json.RawMessage { return nil }

func (UnimplementedHandler) SessionStart(context.Context) json.RawMessage { return nil }

func (UnimplementedHandler) SessionEnd(context.Context, json.RawMessage) *MatchData { return nil }

func (UnimplementedHandler) ResolveEventIcon(context.Context, string) (string, bool) {
	return "", false
}

func (UnimplementedHandler) MatchInProgress(context.Context, int, string) MatchProgress {
	return MatchProgress{}
}

func (UnimplementedHandler) MatchTimeline(context.Context, TimelineQuery) json.RawMessage {
	return nil
}

func (UnimplementedHandler) SampleMatchData(context.Context, int) json.RawMessage { return nil }

func (UnimplementedHandler) Shutdown(context.Context) {}

package pack

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/clipcompanion/packbridge/bridge"
	"github.com/clipcompanion/packbridge/internal/logx"
	"github.com/clipcompanion/packbridge/wire"
)

// Runner owns a pack's transport end: it announces the pack, feeds bridge
// traffic (handshake, responses, render) to its Bridge, and answers host
// lifecycle commands through the Handler.
type Runner struct {
	tr    bridge.Transport
	h     Handler
	b     *bridge.Bridge
	cache bridge.Cache

	wmu      sync.Mutex
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewRunner wires a Runner, its Bridge, and the cache capability together.
func NewRunner(tr bridge.Transport, h Handler, opts ...bridge.Option) *Runner {
	opts = append(opts, bridge.WithRenderHandler(h.OnRender))
	b := bridge.New(tr, opts...)
	return &Runner{tr: tr, h: h, b: b, cache: bridge.NewCache(b), stopped: make(chan struct{})}
}

// Bridge returns the runner's bridge instance.
func (r *Runner) Bridge() *bridge.Bridge { return r.b }

// Cache returns the cache capability backed by the runner's bridge.
func (r *Runner) Cache() bridge.Cache { return r.cache }

// Run sends pack:ready and processes inbound messages until the host
// requests shutdown, ctx ends, or the transport fails.
//
// Commands are dispatched on their own goroutine so a Handler that calls
// back into the host (cache operations wait for a host:response routed by
// this same loop) never stalls the reader. Responses may therefore be
// written out of command order; correlation ids keep them matched.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := r.b.SendReady(ctx); err != nil {
		return err
	}
	for {
		data, err := r.tr.Read(ctx)
		if err != nil {
			r.b.Abort(err)
			select {
			case <-r.stopped:
				return nil
			default:
				return err
			}
		}
		env, err := wire.Peek(data)
		if err != nil {
			logx.Log.Debug().Err(err).Msg("drop malformed message")
			continue
		}
		if !wire.IsCommand(env.Type) {
			r.b.Handle(data)
			if env.Type == wire.TypeHostInit {
				var m wire.Init
				if json.Unmarshal(data, &m) == nil {
					r.h.OnInit(m)
				}
			}
			continue
		}
		var cmd wire.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		go r.serve(ctx, cancel, cmd)
	}
}

// serve dispatches one command and writes its response. On shutdown the
// read loop is released after the response is on the wire.
func (r *Runner) serve(ctx context.Context, stop context.CancelFunc, cmd wire.Command) {
	resp, stopAfter := r.dispatch(ctx, cmd)
	raw, err := json.Marshal(resp)
	if err == nil {
		r.wmu.Lock()
		err = r.tr.Write(ctx, raw)
		r.wmu.Unlock()
		if err != nil {
			r.b.Abort(err)
		}
	}
	if stopAfter {
		r.stopOnce.Do(func() { close(r.stopped) })
		stop()
	}
}

func (r *Runner) dispatch(ctx context.Context, cmd wire.Command) (wire.Response, bool) {
	switch cmd.Type {
	case wire.TypeDetectRunning:
		return respOK(cmd.ID, r.h.DetectRunning(ctx)), false
	case wire.TypeGetStatus:
		return respOK(cmd.ID, r.h.Status(ctx)), false
	case wire.TypePollEvents:
		events := r.h.PollEvents(ctx)
		if events == nil {
			events = []GameEvent{}
		}
		return respOK(cmd.ID, events), false
	case wire.TypeGetLiveData:
		return rawOK(cmd.ID, r.h.LiveData(ctx)), false
	case wire.TypeSessionStart:
		return rawOK(cmd.ID, r.h.SessionStart(ctx)), false
	case wire.TypeSessionEnd:
		md := r.h.SessionEnd(ctx, cmd.Context)
		if md == nil {
			return rawOK(cmd.ID, nil), false
		}
		return respOK(cmd.ID, md), false
	case wire.TypeResolveEventIcon:
		url, ok := r.h.ResolveEventIcon(ctx, cmd.EventKey)
		res := struct {
			EventKey string  `json:"eventKey"`
			IconURL  *string `json:"iconUrl"`
		}{EventKey: cmd.EventKey}
		if ok {
			res.IconURL = &url
		}
		return respOK(cmd.ID, res), false
	case wire.TypeIsMatchInProgress:
		return respOK(cmd.ID, r.h.MatchInProgress(ctx, cmd.Subpack, cmd.ExternalMatchID)), false
	case wire.TypeGetMatchTimeline:
		q := TimelineQuery{
			Subpack:         cmd.Subpack,
			ExternalMatchID: cmd.ExternalMatchID,
			EntryTypes:      cmd.EntryTypes,
			Limit:           cmd.Limit,
		}
		return rawOK(cmd.ID, r.h.MatchTimeline(ctx, q)), false
	case wire.TypeGetSampleMatchData:
		return rawOK(cmd.ID, r.h.SampleMatchData(ctx, cmd.Subpack)), false
	case wire.TypeShutdown:
		r.h.Shutdown(ctx)
		return rawOK(cmd.ID, nil), true
	default:
		return wire.Fail(wire.TypePackResponse, cmd.ID, "unsupported command"), false
	}
}

func respOK(id string, v any) wire.Response {
	b, err := json.Marshal(v)
	if err != nil {
		return wire.Fail(wire.TypePackResponse, id, err.Error())
	}
	return wire.OK(wire.TypePackResponse, id, b)
}

func rawOK(id string, raw json.RawMessage) wire.Response {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return wire.OK(wire.TypePackResponse, id, raw)
}

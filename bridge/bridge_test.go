package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/clipcompanion/packbridge/wire"
)

type fakeTransport struct {
	mu    sync.Mutex
	wrote [][]byte
	in    chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan []byte, 16)}
}

func (f *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data := <-f.in:
		return data, nil
	}
}

func (f *fakeTransport) Write(_ context.Context, data []byte) error {
	f.mu.Lock()
	f.wrote = append(f.wrote, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error { return nil }

// waitWrites blocks until n messages have been written or the test times out.
func (f *fakeTransport) waitWrites(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.wrote) >= n {
			out := make([][]byte, n)
			copy(out, f.wrote[:n])
			f.mu.Unlock()
			return out
		}
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d writes", n)
	return nil
}

func respond(b *Bridge, id string, success bool, data, errMsg string) {
	r := wire.Response{Type: wire.TypeHostResponse, ID: id, Success: success, Error: errMsg}
	if data != "" {
		r.Data = json.RawMessage(data)
	}
	raw, _ := json.Marshal(r)
	b.Handle(raw)
}

func TestCallResolvesWithData(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	done := make(chan struct{})
	var got json.RawMessage
	var gotErr error
	go func() {
		got, gotErr = b.Call(context.Background(), func(id string) any {
			return wire.CacheRead{Type: wire.TypeCacheRead, ID: id, Key: "k"}
		})
		close(done)
	}()
	msgs := tr.waitWrites(t, 1)
	env, err := wire.Peek(msgs[0])
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if env.ID != "1" {
		t.Fatalf("first correlation id = %q; want %q", env.ID, "1")
	}
	respond(b, env.ID, true, "42", "")
	<-done
	if gotErr != nil {
		t.Fatalf("call failed: %v", gotErr)
	}
	if string(got) != "42" {
		t.Fatalf("resolved with %s; want 42", got)
	}
}

func TestCallRejectsWithHostError(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	done := make(chan error, 1)
	go func() {
		_, err := b.Call(context.Background(), func(id string) any {
			return wire.CacheClear{Type: wire.TypeCacheClear, ID: id}
		})
		done <- err
	}()
	msgs := tr.waitWrites(t, 1)
	env, _ := wire.Peek(msgs[0])
	respond(b, env.ID, false, "", "disk full")
	if err := <-done; err == nil || err.Error() != "disk full" {
		t.Fatalf("err = %v; want disk full", err)
	}
}

func TestCallRejectsWithFallbackError(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	done := make(chan error, 1)
	go func() {
		_, err := b.Call(context.Background(), func(id string) any {
			return wire.CacheClear{Type: wire.TypeCacheClear, ID: id}
		})
		done <- err
	}()
	msgs := tr.waitWrites(t, 1)
	env, _ := wire.Peek(msgs[0])
	respond(b, env.ID, false, "", "")
	err := <-done
	if err == nil || err.Error() == "" {
		t.Fatalf("expected non-empty fallback error, got %v", err)
	}
}

func TestCorrelationIDsDistinct(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Call(context.Background(), func(id string) any {
				return wire.CacheGetSize{Type: wire.TypeCacheGetSize, ID: id}
			})
		}()
	}
	msgs := tr.waitWrites(t, n)
	seen := map[string]bool{}
	for _, raw := range msgs {
		env, err := wire.Peek(raw)
		if err != nil {
			t.Fatalf("peek: %v", err)
		}
		if seen[env.ID] {
			t.Fatalf("correlation id %q reused", env.ID)
		}
		seen[env.ID] = true
	}
	for id := range seen {
		respond(b, id, true, "{}", "")
	}
	wg.Wait()
}

func TestExactlyOnceSettlement(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	done := make(chan error, 1)
	go func() {
		_, err := b.Call(context.Background(), func(id string) any {
			return wire.CacheRead{Type: wire.TypeCacheRead, ID: id, Key: "k"}
		})
		done <- err
	}()
	msgs := tr.waitWrites(t, 1)
	env, _ := wire.Peek(msgs[0])
	respond(b, env.ID, true, "1", "")
	if err := <-done; err != nil {
		t.Fatalf("first settlement: %v", err)
	}
	// A second response for the same id must be dropped, not re-settle.
	respond(b, env.ID, false, "", "late duplicate")
	select {
	case err := <-done:
		t.Fatalf("caller settled twice: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnmatchedResponseIgnored(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	done := make(chan error, 1)
	go func() {
		_, err := b.Call(context.Background(), func(id string) any {
			return wire.CacheRead{Type: wire.TypeCacheRead, ID: id, Key: "k"}
		})
		done <- err
	}()
	msgs := tr.waitWrites(t, 1)
	env, _ := wire.Peek(msgs[0])

	respond(b, "never-issued", false, "", "spurious")
	select {
	case err := <-done:
		t.Fatalf("pending call disturbed by unmatched response: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	respond(b, env.ID, true, "true", "")
	if err := <-done; err != nil {
		t.Fatalf("call: %v", err)
	}
}

func TestOrderingIndependence(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	type outcome struct {
		data json.RawMessage
		err  error
	}
	results := make([]chan outcome, 2)
	for i := range results {
		results[i] = make(chan outcome, 1)
		key := fmt.Sprintf("key-%d", i)
		ch := results[i]
		go func() {
			data, err := b.Call(context.Background(), func(id string) any {
				return wire.CacheRead{Type: wire.TypeCacheRead, ID: id, Key: key}
			})
			ch <- outcome{data, err}
		}()
		tr.waitWrites(t, i+1)
	}
	msgs := tr.waitWrites(t, 2)
	var ids [2]string
	for i, raw := range msgs {
		env, _ := wire.Peek(raw)
		ids[i] = env.ID
	}

	// Answer B before A; each caller must still get its own payload.
	respond(b, ids[1], true, `"second"`, "")
	got := <-results[1]
	if got.err != nil || string(got.data) != `"second"` {
		t.Fatalf("B settled with %s, %v", got.data, got.err)
	}
	select {
	case o := <-results[0]:
		t.Fatalf("A settled before its response: %s, %v", o.data, o.err)
	case <-time.After(50 * time.Millisecond):
	}
	respond(b, ids[0], true, `"first"`, "")
	got = <-results[0]
	if got.err != nil || string(got.data) != `"first"` {
		t.Fatalf("A settled with %s, %v", got.data, got.err)
	}
}

func TestHandshakeIdempotent(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	done := make(chan error, 1)
	go func() {
		_, err := b.Call(context.Background(), func(id string) any {
			return wire.CacheRead{Type: wire.TypeCacheRead, ID: id, Key: "k"}
		})
		done <- err
	}()
	msgs := tr.waitWrites(t, 1)
	env, _ := wire.Peek(msgs[0])

	init1, _ := json.Marshal(wire.Init{Type: wire.TypeHostInit, GameID: "league"})
	init2, _ := json.Marshal(wire.Init{Type: wire.TypeHostInit, GameID: "valorant", Config: json.RawMessage(`{"x":1}`)})
	b.Handle(init1)
	b.Handle(init2)
	if !b.Ready() {
		t.Fatal("bridge not ready after handshake")
	}
	if got := b.GameID(); got != "valorant" {
		t.Fatalf("game id = %q; want last handshake value", got)
	}
	if string(b.Config()) != `{"x":1}` {
		t.Fatalf("config = %s", b.Config())
	}

	// Handshakes must not disturb pending calls.
	respond(b, env.ID, true, "null", "")
	if err := <-done; err != nil {
		t.Fatalf("call after repeated handshakes: %v", err)
	}
}

func TestUnknownInboundTypeIgnored(t *testing.T) {
	b := New(newFakeTransport())
	b.Handle([]byte(`{"type":"host:futureThing","id":"1","payload":{}}`))
	b.Handle([]byte(`not json`))
}

func TestRenderDispatch(t *testing.T) {
	var got wire.Render
	b := New(newFakeTransport(), WithRenderHandler(func(r wire.Render) { got = r }))
	raw, _ := json.Marshal(wire.Render{Type: wire.TypeHostRender, ComponentType: "MatchCard", Props: json.RawMessage(`{"kda":"3/1/7"}`)})
	b.Handle(raw)
	if got.ComponentType != "MatchCard" || string(got.Props) != `{"kda":"3/1/7"}` {
		t.Fatalf("render handler got %+v", got)
	}
}

func TestRequestTimeoutEvicts(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr, WithRequestTimeout(20*time.Millisecond))
	_, err := b.Call(context.Background(), func(id string) any {
		return wire.CacheRead{Type: wire.TypeCacheRead, ID: id, Key: "k"}
	})
	if err == nil {
		t.Fatal("expected deadline error")
	}
	b.mu.Lock()
	n := len(b.pending)
	b.mu.Unlock()
	if n != 0 {
		t.Fatalf("pending table has %d stale entries", n)
	}
	// A late response for the evicted id is dropped silently.
	respond(b, "1", true, "{}", "")
}

func TestAbortFailsAllPending(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := b.Call(context.Background(), func(id string) any {
				return wire.CacheGetSize{Type: wire.TypeCacheGetSize, ID: id}
			})
			done <- err
		}()
	}
	tr.waitWrites(t, 2)
	b.Abort(context.Canceled)
	for i := 0; i < 2; i++ {
		if err := <-done; err == nil {
			t.Fatal("pending call survived abort")
		}
	}
}

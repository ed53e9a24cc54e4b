package bridge

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/clipcompanion/packbridge/wire"
)

// ErrNotConfigured is returned by the disconnected cache for mutating
// operations invoked without a live host context.
var ErrNotConfigured = errors.New("cache context not provided")

// Usage reports total cache consumption for a pack.
type Usage struct {
	SizeBytes int64 `json:"sizeBytes"`
	FileCount int   `json:"fileCount"`
}

// Cache is the capability surface packs use for host-persisted storage.
// Implementations never panic; all failure is reported through the error
// return.
type Cache interface {
	// Read returns the value cached under key. A missing value is a
	// successful (nil, false, nil), never an error.
	Read(ctx context.Context, key string) (json.RawMessage, bool, error)
	Write(ctx context.Context, key string, value any) error
	Exists(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context) (Usage, error)
	Clear(ctx context.Context) error
}

// NewCache returns the cache capability backed by b. Callers construct it
// once during pack initialization and pass it to whatever needs storage.
func NewCache(b *Bridge) Cache { return &bridgeCache{b: b} }

type bridgeCache struct {
	b *Bridge
}

func (c *bridgeCache) Read(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, err := c.b.Call(ctx, func(id string) any {
		return wire.CacheRead{Type: wire.TypeCacheRead, ID: id, Key: key}
	})
	if err != nil {
		return nil, false, err
	}
	if isAbsent(data) {
		return nil, false, nil
	}
	return data, true, nil
}

func (c *bridgeCache) Write(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	data, err := c.b.Call(ctx, func(id string) any {
		return wire.CacheWrite{Type: wire.TypeCacheWrite, ID: id, Key: key, Data: raw}
	})
	if err != nil {
		return err
	}
	return ackError(data, "write failed")
}

func (c *bridgeCache) Exists(ctx context.Context, key string) (bool, error) {
	data, err := c.b.Call(ctx, func(id string) any {
		return wire.CacheExists{Type: wire.TypeCacheExists, ID: id, Key: key}
	})
	if err != nil {
		return false, err
	}
	var exists bool
	if err := json.Unmarshal(data, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (c *bridgeCache) Size(ctx context.Context) (Usage, error) {
	data, err := c.b.Call(ctx, func(id string) any {
		return wire.CacheGetSize{Type: wire.TypeCacheGetSize, ID: id}
	})
	if err != nil {
		return Usage{}, err
	}
	var u Usage
	if err := json.Unmarshal(data, &u); err != nil {
		return Usage{}, err
	}
	return u, nil
}

func (c *bridgeCache) Clear(ctx context.Context) error {
	data, err := c.b.Call(ctx, func(id string) any {
		return wire.CacheClear{Type: wire.TypeCacheClear, ID: id}
	})
	if err != nil {
		return err
	}
	return ackError(data, "clear failed")
}

func isAbsent(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}

// ackError decodes the {success, error} acknowledgement some operations
// carry inside a successful response.
func ackError(data json.RawMessage, fallback string) error {
	if isAbsent(data) {
		return nil
	}
	var ack struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil
	}
	if ack.Success {
		return nil
	}
	if ack.Error != "" {
		return errors.New(ack.Error)
	}
	return errors.New(fallback)
}

// Disconnected returns the inert cache used when no host context exists
// (tests, isolated previews). Every method returns the documented default
// without a live bridge.
func Disconnected() Cache { return disconnectedCache{} }

type disconnectedCache struct{}

func (disconnectedCache) Read(context.Context, string) (json.RawMessage, bool, error) {
	return nil, false, nil
}
func (disconnectedCache) Write(context.Context, string, any) error { return ErrNotConfigured }
func (disconnectedCache) Exists(context.Context, string) (bool, error) {
	return false, nil
}
func (disconnectedCache) Size(context.Context) (Usage, error) { return Usage{}, nil }
func (disconnectedCache) Clear(context.Context) error         { return ErrNotConfigured }

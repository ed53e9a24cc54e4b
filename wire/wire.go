// Package wire defines the messages exchanged between a game pack and the
// host application across the sandbox boundary. Messages are flat JSON
// objects distinguished by a "type" field.
package wire

import "encoding/json"

// Type discriminates message variants on the wire.
type Type string

// Pack to host.
const (
	TypePackReady    Type = "pack:ready"
	TypeCacheRead    Type = "pack:cache:read"
	TypeCacheWrite   Type = "pack:cache:write"
	TypeCacheExists  Type = "pack:cache:exists"
	TypeCacheGetSize Type = "pack:cache:getSize"
	TypeCacheClear   Type = "pack:cache:clear"
	TypePackResponse Type = "pack:response"
)

// Host to pack.
const (
	TypeHostInit     Type = "host:init"
	TypeHostResponse Type = "host:response"
	TypeHostRender   Type = "host:render"

	TypeDetectRunning      Type = "host:detectRunning"
	TypeGetStatus          Type = "host:getStatus"
	TypePollEvents         Type = "host:pollEvents"
	TypeGetLiveData        Type = "host:getLiveData"
	TypeSessionStart       Type = "host:sessionStart"
	TypeSessionEnd         Type = "host:sessionEnd"
	TypeShutdown           Type = "host:shutdown"
	TypeResolveEventIcon   Type = "host:resolveEventIcon"
	TypeIsMatchInProgress  Type = "host:isMatchInProgress"
	TypeGetMatchTimeline   Type = "host:getMatchTimeline"
	TypeGetSampleMatchData Type = "host:getSampleMatchData"
)

// Envelope carries the fields common to every message. Unknown message
// types decode to an Envelope so receivers can skip them without error.
type Envelope struct {
	Type Type   `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Ready announces a booted pack. Fire-and-forget; carries no correlation id.
type Ready struct {
	Type Type `json:"type"`
}

// NewReady constructs a pack:ready message.
func NewReady() Ready { return Ready{Type: TypePackReady} }

// CacheRead requests the value stored under Key.
type CacheRead struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
	Key  string `json:"key"`
}

// CacheWrite stores Data under Key.
type CacheWrite struct {
	Type Type            `json:"type"`
	ID   string          `json:"id"`
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// CacheExists asks whether Key has a cached value.
type CacheExists struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
	Key  string `json:"key"`
}

// CacheGetSize asks for the pack's total cache usage.
type CacheGetSize struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

// CacheClear removes every cached value for the pack.
type CacheClear struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

// Response answers a correlated request. The same shape serves both
// directions; Type is host:response or pack:response.
type Response struct {
	Type    Type            `json:"type"`
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OK constructs a successful response of the given direction.
func OK(t Type, id string, data json.RawMessage) Response {
	return Response{Type: t, ID: id, Success: true, Data: data}
}

// Fail constructs a failed response carrying a human-readable error.
func Fail(t Type, id, msg string) Response {
	return Response{Type: t, ID: id, Success: false, Error: msg}
}

// Init is the host's handshake. Repeats overwrite the recorded identity.
type Init struct {
	Type   Type            `json:"type"`
	GameID string          `json:"gameId"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Render directs the pack to render a component. Not a response; it carries
// no correlation id.
type Render struct {
	Type          Type            `json:"type"`
	ComponentType string          `json:"componentType"`
	Props         json.RawMessage `json:"props"`
}

// Command is a correlated host directive answered by one pack:response.
// Context is set for host:sessionEnd, EventKey for host:resolveEventIcon;
// the match recovery commands carry Subpack and ExternalMatchID, and
// host:getMatchTimeline may narrow with EntryTypes and Limit.
type Command struct {
	Type            Type            `json:"type"`
	ID              string          `json:"id"`
	Context         json.RawMessage `json:"context,omitempty"`
	EventKey        string          `json:"eventKey,omitempty"`
	Subpack         int             `json:"subpack,omitempty"`
	ExternalMatchID string          `json:"externalMatchId,omitempty"`
	EntryTypes      []string        `json:"entryTypes,omitempty"`
	Limit           int             `json:"limit,omitempty"`
}

// IsCacheOp reports whether t is a correlated pack cache request.
func IsCacheOp(t Type) bool {
	switch t {
	case TypeCacheRead, TypeCacheWrite, TypeCacheExists, TypeCacheGetSize, TypeCacheClear:
		return true
	}
	return false
}

// IsCommand reports whether t is a correlated host lifecycle command.
func IsCommand(t Type) bool {
	switch t {
	case TypeDetectRunning, TypeGetStatus, TypePollEvents, TypeGetLiveData,
		TypeSessionStart, TypeSessionEnd, TypeShutdown, TypeResolveEventIcon,
		TypeIsMatchInProgress, TypeGetMatchTimeline, TypeGetSampleMatchData:
		return true
	}
	return false
}

// Peek decodes only the common envelope fields.
func Peek(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}

// Decode returns the concrete message for data. Unrecognized types decode
// to the bare Envelope; receivers must tolerate them.
func Decode(data []byte) (any, error) {
	env, err := Peek(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case TypePackReady:
		var m Ready
		return m, json.Unmarshal(data, &m)
	case TypeCacheRead:
		var m CacheRead
		return m, json.Unmarshal(data, &m)
	case TypeCacheWrite:
		var m CacheWrite
		return m, json.Unmarshal(data, &m)
	case TypeCacheExists:
		var m CacheExists
		return m, json.Unmarshal(data, &m)
	case TypeCacheGetSize:
		var m CacheGetSize
		return m, json.Unmarshal(data, &m)
	case TypeCacheClear:
		var m CacheClear
		return m, json.Unmarshal(data, &m)
	case TypeHostResponse, TypePackResponse:
		var m Response
		return m, json.Unmarshal(data, &m)
	case TypeHostInit:
		var m Init
		return m, json.Unmarshal(data, &m)
	case TypeHostRender:
		var m Render
		return m, json.Unmarshal(data, &m)
	default:
		if IsCommand(env.Type) {
			var m Command
			return m, json.Unmarshal(data, &m)
		}
		return env, nil
	}
}

package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var schemas = struct {
	mu    sync.RWMutex
	items map[Type]*jsonschema.Resolved
}{items: map[Type]*jsonschema.Resolved{}}

func init() {
	MustRegister[string](TypeText)
	MustRegister[QuickReply](TypeQuickReply)
	MustRegister[Menu](TypeMenu)
}

// Register infers the JSON schema of T and binds it to typ. Registering a type twice replaces
// the previous schema.
func Register[T any](typ Type) error {
	if typ == "" {
		return fmt.Errorf("message type is required")
	}
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return fmt.Errorf("infer schema for %s: %w", typ, err)
	}
	rejectNullArrays(schema)
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for %s: %w", typ, err)
	}
	schemas.mu.Lock()
	schemas.items[typ] = resolved
	schemas.mu.Unlock()
	return nil
}

// rejectNullArrays narrows inferred "null or array" types to "array" so every list has one
// encoding.
func rejectNullArrays(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	if slices.Contains(s.Types, "array") && slices.Contains(s.Types, "null") {
		s.Types = nil
		s.Type = "array"
	}
	for _, prop := range s.Properties {
		rejectNullArrays(prop)
	}
	rejectNullArrays(s.Items)
}

// MustRegister calls Register and panics on error.
func MustRegister[T any](typ Type) {
	if err := Register[T](typ); err != nil {
		panic(err)
	}
}

// Registered reports whether a schema exists for typ.
func Registered(typ Type) bool {
	schemas.mu.RLock()
	defer schemas.mu.RUnlock()
	_, ok := schemas.items[typ]
	return ok
}

// Validate checks msg.Content against the schema registered for msg.Type.
func Validate(msg Message) error {
	schemas.mu.RLock()
	resolved, ok := schemas.items[msg.Type]
	schemas.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	if len(bytes.TrimSpace(msg.Content)) == 0 {
		return fmt.Errorf("%w: %s content is empty", ErrInvalidContent, msg.Type)
	}
	var instance any
	if err := json.Unmarshal(msg.Content, &instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidContent, msg.Type, err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidContent, msg.Type, err)
	}
	return nil
}

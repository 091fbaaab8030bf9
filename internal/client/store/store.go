// Package store implements the durable local key-value store that is the
// client's source of truth, and the static mapping between local keys and
// remote document fields.
package store

import (
	"encoding/json"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// WriteHook observes user-driven writes to the store. The sync session
// registers one to route syncable writes toward the remote document.
type WriteHook func(key string, raw json.RawMessage)

// Store is a JSON key-value store over a durable Table. Reads never fail:
// corrupt or missing records degrade to the caller's default so bad local
// data cannot take the app down.
type Store struct {
	table Table
	log   *zap.Logger

	mu   sync.Mutex
	hook WriteHook
}

// New returns a Store over the given table. log may not be nil.
func New(table Table, log *zap.Logger) *Store {
	return &Store{table: table, log: log}
}

// SetWriteHook registers the hook invoked after every successful Set of any
// key. Passing nil removes the hook.
func (s *Store) SetWriteHook(hook WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Get decodes the record at key into dst, which must be a non-nil pointer.
// When the record is absent or does not decode into dst's shape, dst is left
// untouched so the caller's default value survives. Decoding goes through a
// scratch value because json.Unmarshal fills dst up to the point where a
// type error occurs.
func (s *Store) Get(key string, dst any) {
	raw, ok := s.table.Load(key)
	if !ok {
		return
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	tmp := reflect.New(v.Elem().Type())
	if err := json.Unmarshal(raw, tmp.Interface()); err != nil {
		s.log.Debug("discarding corrupt local record", zap.String("key", key), zap.Error(err))
		return
	}
	v.Elem().Set(tmp.Elem())
}

// Set encodes v and persists it under key, unconditionally overwriting. On
// success the write hook fires with the encoded value. Encode and persist
// failures are logged and swallowed.
func (s *Store) Set(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode local record", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.table.Store(key, raw); err != nil {
		s.log.Error("persist local record", zap.String("key", key), zap.Error(err))
		return
	}
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(key, raw)
	}
}

// ApplyRemote writes raw directly into the underlying table, bypassing the
// write hook. This is the path remote snapshots use to land locally without
// echoing back to the remote store.
func (s *Store) ApplyRemote(key string, raw json.RawMessage) {
	if err := s.table.Store(key, raw); err != nil {
		s.log.Error("persist remote record", zap.String("key", key), zap.Error(err))
	}
}

// Raw returns the raw JSON currently stored under key, or nil when absent.
func (s *Store) Raw(key string) json.RawMessage {
	raw, ok := s.table.Load(key)
	if !ok {
		return nil
	}
	return json.RawMessage(raw)
}

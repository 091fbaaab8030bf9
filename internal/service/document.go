package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// DocumentRepository defines the persistence operations needed by the DocumentService.
type DocumentRepository interface {
	// Get fetches the document for login; exists is false when none was created.
	Get(ctx context.Context, login string) (map[string]json.RawMessage, bool, error)
	// Merge updates only the given fields, creating the document if missing.
	Merge(ctx context.Context, login string, fields map[string]json.RawMessage) error
	// Replace overwrites the whole document for login.
	Replace(ctx context.Context, login string, fields map[string]json.RawMessage) error
}

// DocumentUpdate is delivered to watchers after every document write, and
// once on attach with the current state.
type DocumentUpdate struct {
	// Exists is false when the user has no document yet.
	Exists bool `json:"exists"`
	// Fields is the full document content after the write.
	Fields map[string]json.RawMessage `json:"fields"`
}

// DocumentService implements per-user document storage with live watch
// fan-out: every successful write pushes the fresh document to all
// watchers of that user.
type DocumentService struct {
	// repo is the underlying persistence repository.
	repo DocumentRepository

	mu       sync.Mutex
	watchers map[string]map[string]chan DocumentUpdate
}

// NewDocumentService constructs a DocumentService with the provided repository.
func NewDocumentService(repo DocumentRepository) *DocumentService {
	return &DocumentService{
		repo:     repo,
		watchers: make(map[string]map[string]chan DocumentUpdate),
	}
}

// Get returns the current document for login.
func (s *DocumentService) Get(ctx context.Context, login string) (map[string]json.RawMessage, bool, error) {
	return s.repo.Get(ctx, login)
}

// Merge applies a partial-field update and notifies watchers with the
// merged result.
func (s *DocumentService) Merge(ctx context.Context, login string, fields map[string]json.RawMessage) error {
	if err := s.repo.Merge(ctx, login, fields); err != nil {
		return err
	}
	s.notify(ctx, login)
	return nil
}

// Replace overwrites the document and notifies watchers.
func (s *DocumentService) Replace(ctx context.Context, login string, fields map[string]json.RawMessage) error {
	if err := s.repo.Replace(ctx, login, fields); err != nil {
		return err
	}
	s.notify(ctx, login)
	return nil
}

// Watch attaches a watcher for login. The returned channel receives the
// current document state immediately and the full document after every
// subsequent write, until Unwatch is called with the returned id. Slow
// watchers miss intermediate updates instead of blocking writers.
func (s *DocumentService) Watch(ctx context.Context, login string) (string, <-chan DocumentUpdate, error) {
	fields, exists, err := s.repo.Get(ctx, login)
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	ch := make(chan DocumentUpdate, 8)

	s.mu.Lock()
	if s.watchers[login] == nil {
		s.watchers[login] = make(map[string]chan DocumentUpdate)
	}
	s.watchers[login][id] = ch
	s.mu.Unlock()

	ch <- DocumentUpdate{Exists: exists, Fields: fields}
	return id, ch, nil
}

// Unwatch detaches a watcher and closes its channel.
func (s *DocumentService) Unwatch(login, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chans, ok := s.watchers[login]; ok {
		if ch, ok := chans[id]; ok {
			delete(chans, id)
			close(ch)
		}
		if len(chans) == 0 {
			delete(s.watchers, login)
		}
	}
}

// notify re-reads the document and pushes it to every watcher of login.
func (s *DocumentService) notify(ctx context.Context, login string) {
	s.mu.Lock()
	n := len(s.watchers[login])
	s.mu.Unlock()
	if n == 0 {
		return
	}

	fields, exists, err := s.repo.Get(ctx, login)
	if err != nil {
		return
	}
	update := DocumentUpdate{Exists: exists, Fields: fields}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers[login] {
		select {
		case ch <- update:
		default:
		}
	}
}

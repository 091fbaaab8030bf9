package sync

import (
	"bytes"
	"context"
	"encoding/json"
)

// Identity describes the authenticated user a session is bound to. Only a
// real (non-anonymous) identity enables cloud sync.
type Identity struct {
	// UID addresses the user's remote document.
	UID string
	// Login is the human-readable account name.
	Login string
	// Anonymous marks a placeholder identity that must never sync.
	Anonymous bool
}

// Snapshot is a point-in-time view of the remote document: remote field
// name to raw JSON value. A field may be present with an explicit JSON
// null, which the session treats differently from an absent field.
type Snapshot map[string]json.RawMessage

// Subscription is a handle to a live remote document listener.
type Subscription interface {
	// Cancel detaches the listener. Safe to call more than once.
	Cancel()
}

// Backend is the remote document store and identity-scoped operations the
// session consumes. Implementations deliver subscription callbacks from
// their own goroutines; the session serializes application internally.
type Backend interface {
	// DocumentGet fetches the user's document. exists is false when no
	// document has ever been created for uid.
	DocumentGet(ctx context.Context, uid string) (snap Snapshot, exists bool, err error)
	// DocumentSetMerge updates only the given fields, creating the document
	// if it is missing.
	DocumentSetMerge(ctx context.Context, uid string, fields Snapshot) error
	// DocumentSetReplace overwrites the document wholesale.
	DocumentSetReplace(ctx context.Context, uid string, fields Snapshot) error
	// DocumentSubscribe attaches a live listener. onSnapshot receives the
	// current document (exists=false when absent) on attach and after every
	// change until the subscription is canceled.
	DocumentSubscribe(uid string, onSnapshot func(Snapshot, bool), onError func(error)) (Subscription, error)
}

// isNull reports whether raw is an explicit JSON null (or empty), as
// opposed to a concrete value.
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

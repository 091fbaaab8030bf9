package store

import "encoding/json"

// Mapping ties a local storage key to its remote document field name and
// the default JSON value used when the local table has no record yet.
type Mapping struct {
	Key     string
	Field   string
	Default json.RawMessage
}

// mappings lists exactly the cloud-syncable collections. Preference keys
// (theme, pomodoro config) are deliberately absent so they never leave the
// device. Every field name maps from exactly one local key.
var mappings = []Mapping{
	{Key: "h2", Field: "habits", Default: json.RawMessage(`[]`)},
	{Key: "hl2", Field: "hlog", Default: json.RawMessage(`{}`)},
	{Key: "t2", Field: "todos", Default: json.RawMessage(`[]`)},
	{Key: "ev2", Field: "calEvents", Default: json.RawMessage(`[]`)},
	{Key: "ex2", Field: "expenses", Default: json.RawMessage(`[]`)},
	{Key: "nt2", Field: "notes", Default: json.RawMessage(`[]`)},
	{Key: "gr2", Field: "grocery", Default: json.RawMessage(`[]`)},
	{Key: "gm2", Field: "games", Default: json.RawMessage(`[]`)},
}

var (
	keyToField = make(map[string]string, len(mappings))
	fieldToKey = make(map[string]string, len(mappings))
)

func init() {
	for _, m := range mappings {
		keyToField[m.Key] = m.Field
		fieldToKey[m.Field] = m.Key
	}
}

// Mappings returns the full syncable-field table in declaration order.
func Mappings() []Mapping {
	out := make([]Mapping, len(mappings))
	copy(out, mappings)
	return out
}

// FieldFor returns the remote field name for a local key, if the key is
// syncable.
func FieldFor(key string) (string, bool) {
	f, ok := keyToField[key]
	return f, ok
}

// KeyFor returns the local key for a remote field name, if the field is
// known.
func KeyFor(field string) (string, bool) {
	k, ok := fieldToKey[field]
	return k, ok
}

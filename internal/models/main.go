// Package models defines the core data structures for users and the
// syncable productivity collections.
package models

// User represents an application user with credentials.
type User struct {
	// Login is the login name chosen by the user.
	Login string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
}

// Habit is a recurring activity tracked on the habits board.
type Habit struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Color           string `json:"color,omitempty"`
	WeeklyGoal      int    `json:"weeklyGoal,omitempty"`
	ReminderTime    string `json:"reminderTime,omitempty"`
	ReminderEnabled bool   `json:"reminderEnabled,omitempty"`
}

// HabitLog records habit check-ins keyed by "YYYY-MM-DD:habitID".
type HabitLog map[string]bool

// Todo is a single task on the todo list.
type Todo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority,omitempty"`
	// Due is an ISO date (YYYY-MM-DD), empty when the task has no deadline.
	Due    string `json:"due,omitempty"`
	Repeat string `json:"repeat,omitempty"`
	Done   bool   `json:"done"`
	// At is the creation time in Unix milliseconds.
	At int64 `json:"at,omitempty"`
}

// CalEvent is a calendar entry pinned to a date.
type CalEvent struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	Time  string `json:"time,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Expense is a single spending record.
type Expense struct {
	ID     string  `json:"id"`
	Desc   string  `json:"desc"`
	Amount float64 `json:"amount"`
	Cat    string  `json:"cat,omitempty"`
	Date   string  `json:"date"`
}

// Note is a free-form text note.
type Note struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	// At is the last-edit time in Unix milliseconds.
	At int64 `json:"at,omitempty"`
}

// GroceryItem is an entry on the grocery list.
type GroceryItem struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Qty     float64 `json:"qty,omitempty"`
	Unit    string  `json:"unit,omitempty"`
	Cat     string  `json:"cat,omitempty"`
	Note    string  `json:"note,omitempty"`
	Checked bool    `json:"checked"`
	AddedAt int64   `json:"addedAt,omitempty"`
}

// GameStatus defines the set of valid game backlog states.
type GameStatus string

const (
	// GameBacklog represents a game not yet started.
	GameBacklog GameStatus = "backlog"
	// GamePlaying represents a game currently being played.
	GamePlaying GameStatus = "playing"
	// GameFinished represents a completed game.
	GameFinished GameStatus = "finished"
	// GameDropped represents an abandoned game.
	GameDropped GameStatus = "dropped"
)

// Game is an entry in the game backlog.
type Game struct {
	ID       string  `json:"id"`
	RawgID   string  `json:"rawgId,omitempty"`
	Title    string  `json:"title"`
	Cover    string  `json:"cover,omitempty"`
	Status   string  `json:"status"`
	Rating   float64 `json:"rating,omitempty"`
	Platform string  `json:"platform,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

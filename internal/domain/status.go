package domain

import (
	"slices"
	"strings"
)

// Status names the board column a task belongs to.
type Status string

// Status values in board order.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

var boardStatuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Statuses returns the board statuses in column order.
func Statuses() []Status {
	return slices.Clone(boardStatuses)
}

// NormalizeStatus canonicalizes user supplied status text.
func NormalizeStatus(raw string) Status {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "todo", "to-do", "to do":
		return StatusTodo
	case "in-progress", "in progress", "inprogress", "progress", "doing":
		return StatusInProgress
	case "done", "complete", "completed":
		return StatusDone
	default:
		return Status(raw)
	}
}

// IsValid reports whether s is one of the board statuses.
func (s Status) IsValid() bool {
	return slices.Contains(boardStatuses, s)
}

// Title returns the column heading for s.
func (s Status) Title() string {
	words := strings.Fields(strings.ReplaceAll(string(s), "-", " "))
	if len(words) == 0 {
		return ""
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}

// Index returns the column position of s, or -1 when s is not a board status.
func (s Status) Index() int {
	return slices.Index(boardStatuses, s)
}

// StatusAt returns the status at column position i, clamped to the board.
func StatusAt(i int) Status {
	if i < 0 {
		i = 0
	}
	if i >= len(boardStatuses) {
		i = len(boardStatuses) - 1
	}
	return boardStatuses[i]
}

// StatusFromCompleted maps an inbound completion flag onto the board.
func StatusFromCompleted(completed bool) Status {
	if completed {
		return StatusDone
	}
	return StatusTodo
}

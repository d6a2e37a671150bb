package tui

import (
	"github.com/evanschultz/kanbo/internal/app"
)

// Option configures a Model.
type Option func(*Model)

// WithEvents makes the board refresh on store notifications.
func WithEvents(events <-chan app.Event) Option {
	return func(m *Model) {
		m.events = events
	}
}

// WithInitialSource sets the source used for the first load and reloads.
func WithInitialSource(source app.Source) Option {
	return func(m *Model) {
		switch source {
		case app.SourceAuto, app.SourceRemote, app.SourceMirror:
			m.source = source
		}
	}
}

// WithPageSizes sets the active page size and the sizes `s` cycles through.
func WithPageSizes(size int, options []int) Option {
	return func(m *Model) {
		m.pager = app.NewPager(size, options)
	}
}

// WithClipboard replaces the function used to copy task text.
func WithClipboard(copyText func(string) error) Option {
	return func(m *Model) {
		if copyText != nil {
			m.copyText = copyText
		}
	}
}

// WithMarkdownStyle sets the glamour style used by the task info modal.
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		m.markdown.style = style
	}
}

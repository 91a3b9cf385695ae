package tui

import (
	"time"

	"github.com/hylla/pantry/internal/app"
)

// defaultSearchTimeout bounds one search request issued by the model.
const defaultSearchTimeout = 5 * time.Second

// Option customizes a Model.
type Option func(*Model)

// WithDebounce sets the quiet interval before a query is sent.
func WithDebounce(d time.Duration) Option {
	return func(m *Model) {
		m.search = app.NewSearchController(d)
	}
}

// WithSearchTimeout bounds each search request.
func WithSearchTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.searchTimeout = d
		}
	}
}

// WithClipboard replaces the clipboard writer used by the copy action.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithClock replaces the time source used for notice expiry.
func WithClock(clock app.Clock) Option {
	return func(m *Model) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger attaches a logger for search and persistence diagnostics.
func WithLogger(logger app.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// KeyConfig holds user overrides for picker bindings. Blank fields keep the defaults.
type KeyConfig struct {
	Remove     string
	ClearAll   string
	Copy       string
	Retry      string
	ToggleHelp string
}

// WithKeyConfig applies key overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

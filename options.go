package texsvg

import (
	"log"

	"github.com/texsvg/texsvg/internal/fontdb"
)

// Option configures a Runner at construction, the same functional-options
// shape the backend-selection constructors in the teacher repo use.
type Option func(*runnerOptions)

type runnerOptions struct {
	logger *log.Logger
	fontDB fontdb.FontDB
}

// WithLogger overrides the Runner's logger. Every component logs the
// recoverable faults spec'd as "logged, not fatal" through this logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *runnerOptions) { o.logger = logger }
}

// WithFontDB supplies the metric source used to resolve glyphs. Without
// this option, every font falls back to the built-in cmb10 entry, whose
// only metric is code 126 with zero width: text still renders, but every
// glyph uses that metric and advances the position by nothing.
func WithFontDB(db fontdb.FontDB) Option {
	return func(o *runnerOptions) { o.fontDB = db }
}

func defaultOptions() runnerOptions {
	return runnerOptions{
		logger: log.Default(),
		fontDB: fontdb.Fallback{},
	}
}

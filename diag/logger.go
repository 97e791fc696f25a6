package diag

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with the field vocabulary the compiler uses for
// every emitted event: file, span, applied-file/applied-span for
// mixin/insert diagnostics, matching the chained-field style of the
// operational request logger this compiler's ambient stack borrows from.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger builds a Logger writing to w at the given minimum level.
// A nil w writes to os.Stderr; the CLI passes its stderr writer.
func NewLogger(w io.Writer, level zerolog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Emit writes d to the logger at the level matching its Severity.
func (l *Logger) Emit(d Diagnostic) {
	var evt *zerolog.Event
	switch d.Severity {
	case SeverityError:
		evt = l.zl.Error()
	case SeverityWarn:
		evt = l.zl.Warn()
	default:
		evt = l.zl.Info()
	}

	if d.File != "" {
		evt = evt.Str("file", d.File)
	}
	if d.Span != nil {
		evt = evt.Int("line", d.Span.Start.Line).Int("col", d.Span.Start.Column)
	}
	if d.AppliedFile != "" {
		evt = evt.Str("applied_file", d.AppliedFile)
	}
	if d.AppliedSpan != nil {
		evt = evt.Int("applied_line", d.AppliedSpan.Start.Line)
	}
	evt.Msg(d.Message)
}

// EmitAll drains a Sink's diagnostics to the logger in recorded order.
func (l *Logger) EmitAll(s *Sink) {
	if s == nil {
		return
	}
	for _, d := range s.All() {
		l.Emit(d)
	}
}

package importer

import "fmt"

// ErrorKind classifies an accumulated import failure by its scope.
type ErrorKind string

const (
	// KindFileFormat marks an unreadable or wrong-extension file.
	// The whole file is skipped.
	KindFileFormat ErrorKind = "file_format"

	// KindRowParse marks a malformed row. The row is skipped, the rest of
	// the file keeps parsing.
	KindRowParse ErrorKind = "row_parse"

	// KindReferenceNotFound marks a song or person reference that could
	// not be resolved and offered no creation path. Only that link is
	// skipped.
	KindReferenceNotFound ErrorKind = "reference_not_found"

	// KindStorage marks a repository failure while committing a service.
	// The service's remaining work is abandoned; previously committed
	// services stay committed.
	KindStorage ErrorKind = "storage"
)

// ImportError is one accumulated failure. It is a value collected into the
// batch Report, never propagated as a Go error past its scope.
type ImportError struct {
	Kind ErrorKind
	File string
	Line int // 0 when the failure is not row-scoped
	Msg  string
}

func (e ImportError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s: row %d: %s", e.File, e.Line, e.Msg)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	default:
		return e.Msg
	}
}

// Report collects import failures for a whole batch. It is not safe for
// concurrent use; the pipeline is single-threaded per batch.
type Report struct {
	errs []ImportError
}

// Add records a failure.
func (r *Report) Add(kind ErrorKind, file string, line int, format string, args ...any) {
	r.errs = append(r.errs, ImportError{
		Kind: kind,
		File: file,
		Line: line,
		Msg:  fmt.Sprintf(format, args...),
	})
}

// AddError records an already-built failure.
func (r *Report) AddError(e ImportError) {
	r.errs = append(r.errs, e)
}

// Len returns the number of accumulated failures.
func (r *Report) Len() int { return len(r.errs) }

// Errors returns all accumulated failures in the order they occurred.
func (r *Report) Errors() []ImportError { return r.errs }

// Messages returns every failure as a human-readable line.
func (r *Report) Messages() []string {
	out := make([]string, 0, len(r.errs))
	for _, e := range r.errs {
		out = append(out, e.Error())
	}
	return out
}

// Render returns at most max failure lines. When more were accumulated the
// last line is a count of the remainder.
func (r *Report) Render(max int) []string {
	msgs := r.Messages()
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	out := append([]string{}, msgs[:max]...)
	return append(out, fmt.Sprintf("...and %d more errors", len(msgs)-max))
}

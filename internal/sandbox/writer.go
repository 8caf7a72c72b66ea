package sandbox

import "strings"

// boundedWriter accumulates output up to a byte cap, appending a visible
// truncation marker once exceeded (: "stdout/stderr ... each
// truncated to output_truncate_bytes with a visible truncation marker").
type boundedWriter struct {
	limit     int64
	buf       strings.Builder
	truncated bool
}

const defaultOutputTruncateBytes = 1 << 20 // 1 MiB

func newBoundedWriter(limit int64) *boundedWriter {
	if limit <= 0 {
		limit = defaultOutputTruncateBytes
	}
	return &boundedWriter{limit: limit}
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if w.truncated {
		return len(p), nil
	}
	remaining := w.limit - int64(w.buf.Len())
	if remaining <= 0 {
		w.truncated = true
		w.buf.WriteString(truncationMarker)
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		w.buf.Write(p[:remaining])
		w.truncated = true
		w.buf.WriteString(truncationMarker)
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

func (w *boundedWriter) String() string { return w.buf.String() }

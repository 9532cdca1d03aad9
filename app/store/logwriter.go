package store

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// LogWriter implements io.Writer and routes engine output into one job's
// log buffer, a line per record. Partial writes are buffered until the
// newline arrives; Flush drains the remainder. The writer is scoped to a
// single execution and must not be shared across jobs.
type LogWriter struct {
	store *Jobs
	jobID string
	level string
	buf   bytes.Buffer
	now   func() time.Time
}

// NewLogWriter creates a line-buffered writer appending to the job's log
func NewLogWriter(s *Jobs, jobID string) *LogWriter {
	return &LogWriter{store: s, jobID: jobID, level: "INFO", now: time.Now}
}

// WithLevel sets the severity recorded with each line, INFO by default
func (w *LogWriter) WithLevel(level string) *LogWriter {
	w.level = level
	return w
}

// Write satisfies io.Writer, appends each complete line to the job log
func (w *LogWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.append(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush appends whatever remains in the buffer as a final line
func (w *LogWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	w.append(strings.TrimRight(w.buf.String(), "\r\n"))
	w.buf.Reset()
}

func (w *LogWriter) append(msg string) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	line := fmt.Sprintf("%s [%s] %s", w.now().Format("2006/01/02 15:04:05"), w.level, msg)
	w.store.AppendLog(w.jobID, line)
}

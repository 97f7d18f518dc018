// Package tracelog provides the line-oriented trace logger used by the
// soundcheck harness. Every line is prefixed with a millisecond timestamp
// preamble; writes are safe from any goroutine, including driver callback
// goroutines.
package tracelog

import (
	"bytes"
	"io"

	"github.com/sirupsen/logrus"
)

// timestampFormat is the preamble layout applied to every line.
const timestampFormat = "15:04:05.000"

// Logger sequences human-readable trace lines onto a single writer.
type Logger struct {
	log *logrus.Logger
}

// New returns a Logger writing preamble-prefixed lines to w.
func New(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&lineFormatter{})

	return &Logger{log: l}
}

// Discard returns a Logger that drops all output. Useful as a default when
// no trace destination is configured.
func Discard() *Logger {
	return New(io.Discard)
}

// Printf writes one formatted trace line.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

// Errorf writes one formatted trace line tagged as an error.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

// Blank writes an empty trace line, used to separate phases of a run.
func (l *Logger) Blank() {
	l.log.Info("")
}

// lineFormatter renders entries as "HH:MM:SS.mmm message" lines. Error-level
// entries carry an ERROR tag so failures stand out in an otherwise uniform
// trace.
type lineFormatter struct{}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	b.WriteString(entry.Time.Format(timestampFormat))
	b.WriteByte(' ')
	if entry.Level <= logrus.ErrorLevel {
		b.WriteString("ERROR: ")
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')

	return b.Bytes(), nil
}

package log

import (
	"bytes"
	"sync"
)

// LineWriter re-emits everything written to it as one log event per line.
// It is used to capture stdout/stderr of child processes.
type LineWriter struct {
	mu     sync.Mutex
	logger *Logger
	level  Level
	buf    bytes.Buffer
}

func NewLineWriter(logger *Logger, level Level) *LineWriter {
	return &LineWriter{logger: logger, level: level}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.Write(line)
			break
		}
		w.emit(line[:len(line)-1])
	}
	return len(p), nil
}

// Flush emits a trailing line which was not terminated by a newline.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *LineWriter) Close() error {
	w.Flush()
	return nil
}

func (w *LineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	w.logger.WithLevel(w.level).Msg(string(line))
}

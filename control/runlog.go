package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogTeeWriter appends standard log output to a file and forwards complete
// WARN/ERROR lines to a channel for the TUI. Forwarding never blocks.
type LogTeeWriter struct {
	mu       sync.Mutex
	file     *os.File
	warnings chan<- string
	partial  []byte
}

// NewLogTeeWriter opens logPath for appending. warnings may be nil.
func NewLogTeeWriter(logPath string, warnings chan<- string) (*LogTeeWriter, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &LogTeeWriter{file: f, warnings: warnings}, nil
}

// Write implements io.Writer.
func (w *LogTeeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	n, err := w.file.Write(p)
	if err != nil || w.warnings == nil {
		return n, err
	}

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		line := string(w.partial[:i])
		w.partial = w.partial[i+1:]
		if strings.Contains(line, "ERROR:") || strings.Contains(line, "WARN:") || strings.Contains(line, "PANIC:") {
			select {
			case w.warnings <- line:
			default:
			}
		}
	}
	return n, nil
}

// Close closes the underlying file.
func (w *LogTeeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// RedirectLogToFile redirects the standard log output to the given writer and returns a restore func.
func RedirectLogToFile(w io.Writer) (restore func()) {
	oldFlags := log.Flags()
	oldPrefix := log.Prefix()
	oldOut := log.Writer()
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("")
	return func() {
		log.SetOutput(oldOut)
		log.SetFlags(oldFlags)
		log.SetPrefix(oldPrefix)
	}
}

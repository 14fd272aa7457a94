package persist

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceEntry is one line of a session's pass history: per-pass extrema and
// energy, where the reference repo's trace held per-iteration cost.
type TraceEntry struct {
	PassIndex int       `json:"passIndex"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Energy    float64   `json:"energy"`
	Timestamp time.Time `json:"timestamp"`
}

// TraceWriter appends TraceEntry lines to a JSONL file, buffered and safe
// for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewTraceWriter opens <baseDir>/sessions/<sessionID>/trace.jsonl, creating
// the session directory if needed. append controls whether existing
// content is preserved or the file is truncated.
func NewTraceWriter(baseDir, sessionID string, append bool) (*TraceWriter, error) {
	dir := filepath.Join(baseDir, "sessions", sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("persist: create session directory: %w", err)
	}

	path := filepath.Join(dir, "trace.jsonl")
	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("persist: open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends entry, buffered until Flush or Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("persist: marshal trace entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("persist: write trace entry: %w", err)
	}
	return tw.writer.WriteByte('\n')
}

// Flush writes buffered data to disk and fsyncs the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("persist: flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("persist: sync trace file: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("persist: flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("persist: close trace file: %w", err)
	}
	return nil
}

// Path returns the trace file's filesystem path.
func (tw *TraceWriter) Path() string { return tw.path }

// TraceReader reads TraceEntry lines back out of a JSONL file.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader opens <baseDir>/sessions/<sessionID>/trace.jsonl for
// reading.
func NewTraceReader(baseDir, sessionID string) (*TraceReader, error) {
	path := filepath.Join(baseDir, "sessions", sessionID, "trace.jsonl")

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("persist: open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &TraceReader{file: file, scanner: scanner}, nil
}

// Read returns the next entry, or io.EOF once the file is exhausted.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("persist: scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("persist: unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads every remaining entry.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the underlying file.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("persist: close trace file: %w", err)
	}
	return nil
}

// DeleteTrace removes a session's trace file, if any. A missing file is
// not an error.
func DeleteTrace(baseDir, sessionID string) error {
	path := filepath.Join(baseDir, "sessions", sessionID, "trace.jsonl")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persist: delete trace file: %w", err)
	}
	return nil
}

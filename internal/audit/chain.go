package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// GenesisHash is the prev_hash of the first line of a new chain.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// ChainEntry is one JSONL line: the record plus the hash of the previous line.
type ChainEntry struct {
	Record
	PrevHash string `json:"prev_hash"`
}

// ChainSink appends records to a hash-chained JSONL file. Editing, removing
// or reordering any line breaks the chain at the next line.
type ChainSink struct {
	path     string
	file     *os.File
	prevHash string
	mu       sync.Mutex
}

// OpenChain opens or creates the log at path and resumes from its last line.
func OpenChain(path string) (*ChainSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash := GenesisHash
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		last, err := lastLine(path)
		if err != nil {
			return nil, err
		}
		if len(last) > 0 {
			prevHash = HashLine(last)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	return &ChainSink{path: path, file: file, prevHash: prevHash}, nil
}

func lastLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var last []byte
	for scanner.Scan() {
		last = append(last[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan existing log: %w", err)
	}
	return last, nil
}

func (c *ChainSink) Path() string { return c.path }

func (c *ChainSink) Write(_ context.Context, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, err := json.Marshal(ChainEntry{Record: rec, PrevHash: c.prevHash})
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := c.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}
	c.prevHash = HashLine(line)
	return nil
}

func (c *ChainSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}

// HashLine returns "sha256:<hex>" of line.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify walks the chain at path and reports the first broken link. It also
// checks that Before precedes After for every invocation in the file.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	expected := GenesisHash
	open := make(map[string]bool)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Bytes()

		var entry ChainEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return VerifyResult{Lines: n, Error: fmt.Sprintf("parse error: %v", err), ErrorLine: n}
		}
		if entry.PrevHash != expected {
			return VerifyResult{
				Lines:     n,
				Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", expected, entry.PrevHash),
				ErrorLine: n,
			}
		}
		switch entry.Phase {
		case PhaseBefore:
			open[entry.InvocationID] = true
		case PhaseAfter:
			if !open[entry.InvocationID] {
				return VerifyResult{
					Lines:     n,
					Error:     fmt.Sprintf("after record for %s has no preceding before record", entry.InvocationID),
					ErrorLine: n,
				}
			}
			delete(open, entry.InvocationID)
		}
		expected = HashLine(line)
	}
	if err := scanner.Err(); err != nil {
		return VerifyResult{Lines: n, Error: fmt.Sprintf("scan: %v", err)}
	}
	return VerifyResult{Valid: true, Lines: n}
}

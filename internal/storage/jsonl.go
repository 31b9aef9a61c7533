package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"liquidationScope/internal/model"
)

const (
	EntryOpportunity = "opportunity"
	EntrySettlement  = "settlement"
)

// Entry is one journal line.
type Entry struct {
	Type        string                  `json:"type"`
	RecordedAt  time.Time               `json:"recorded_at"`
	Opportunity *model.BatchOpportunity `json:"opportunity,omitempty"`
	Settlement  *model.SettlementRecord `json:"settlement,omitempty"`
}

// JsonlJournal appends journal entries to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path, now: func() time.Time { return time.Now().UTC() }}
}

func (s *JsonlJournal) WriteOpportunities(_ context.Context, batches []model.BatchOpportunity) error {
	entries := make([]Entry, len(batches))
	at := s.now()
	for i := range batches {
		entries[i] = Entry{Type: EntryOpportunity, RecordedAt: at, Opportunity: &batches[i]}
	}
	return s.append(entries)
}

func (s *JsonlJournal) WriteSettlements(_ context.Context, records []model.SettlementRecord) error {
	entries := make([]Entry, len(records))
	at := s.now()
	for i := range records {
		entries[i] = Entry{Type: EntrySettlement, RecordedAt: at, Settlement: &records[i]}
	}
	return s.append(entries)
}

func (s *JsonlJournal) append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal journal entry: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write journal entry: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// ReadJournal loads every entry of a JSONL journal.
func ReadJournal(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("parse journal line %d: %w", len(entries)+1, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return entries, nil
}

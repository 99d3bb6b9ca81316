package gateways

import (
	"sync"
	"time"

	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces"
)

// MemoryScanStatus keeps scan status entries in memory and mirrors them to
// the logger. It is safe for concurrent use.
type MemoryScanStatus struct {
	mu      sync.Mutex
	entries map[string][]entities.ScanStatusEntry
	logger  interfaces.Logger
	now     func() time.Time
}

// NewMemoryScanStatus creates an empty scan status store
func NewMemoryScanStatus(logger interfaces.Logger) *MemoryScanStatus {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &MemoryScanStatus{
		entries: make(map[string][]entities.ScanStatusEntry),
		logger:  logger,
		now:     time.Now,
	}
}

// Append records a status message for a scan
func (s *MemoryScanStatus) Append(scanID, message, detail string) {
	entry := entities.ScanStatusEntry{
		ScanID:    scanID,
		Message:   message,
		Detail:    detail,
		Timestamp: s.now().UTC(),
	}

	s.mu.Lock()
	s.entries[scanID] = append(s.entries[scanID], entry)
	s.mu.Unlock()

	fields := []interfaces.Field{interfaces.F("scan_id", scanID)}
	if detail != "" {
		fields = append(fields, interfaces.F("detail", detail))
	}
	s.logger.Info(message, fields...)
}

// Entries returns a copy of the entries recorded for a scan, oldest first
func (s *MemoryScanStatus) Entries(scanID string) []entities.ScanStatusEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entities.ScanStatusEntry, len(s.entries[scanID]))
	copy(out, s.entries[scanID])
	return out
}

// Messages returns only the messages recorded for a scan
func (s *MemoryScanStatus) Messages(scanID string) []string {
	entries := s.Entries(scanID)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

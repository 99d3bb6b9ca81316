package entities

import "time"

// ScanStatusEntry is one diagnostic line appended during a scan
type ScanStatusEntry struct {
	ScanID    string    `json:"scan_id"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

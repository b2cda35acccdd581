package model

import (
	"strings"
	"time"
)

// Session is the active attendance-taking period. Records are ordered
// newest first. The set of seen identifiers is derived from Records and is
// never stored independently.
type Session struct {
	SlotName  string             `json:"slot_name"`
	Records   []AttendanceRecord `json:"records"`
	LastSaved time.Time          `json:"last_saved"`
}

// SeenIdentifiers rebuilds the dedup set from the record list.
func (s *Session) SeenIdentifiers() map[string]struct{} {
	seen := make(map[string]struct{}, len(s.Records))
	for _, r := range s.Records {
		seen[r.Identifier] = struct{}{}
	}
	return seen
}

// AttendanceRecord is one marked attendance. Created once when a scan is
// accepted, never mutated, removed only by a full session reset.
type AttendanceRecord struct {
	ID          string `json:"id"`
	StudentName string `json:"student_name"`
	Identifier  string `json:"identifier"`
	SlotName    string `json:"slot_name"`
	CaptureDate string `json:"capture_date"` // YYYY-MM-DD
	CaptureTime string `json:"capture_time"` // HH:MM
}

// Verdict is the recognition service's structured answer for one frame.
type Verdict struct {
	Valid           bool    `json:"is_valid"`
	StudentName     string  `json:"student_name"`
	Identifier      string  `json:"identifier"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// NormalizeIdentifier uppercases and strips all whitespace. The result is
// the dedup key for the session.
func NormalizeIdentifier(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

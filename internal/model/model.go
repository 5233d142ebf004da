// Package model defines the domain types used across the application.
package model

import "time"

// Message is one unit retrieved from the channel source. It lives for a
// single pipeline pass; only its ID survives into the history ledger.
type Message struct {
	ID         int64
	Text       string
	Attachment *Attachment
}

// Attachment describes the binary payload carried by a message.
// FileID is the platform handle used to fetch the payload; FileName may
// be empty (photos carry no suggested name).
type Attachment struct {
	FileName string
	MimeType string
	Size     int64
	FileID   string
}

// Outcome classifies the result of processing a single message.
type Outcome string

// Supported outcomes.
const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeDuplicate  Outcome = "skipped_duplicate"
	OutcomeFiltered   Outcome = "skipped_filtered"
	OutcomeFailed     Outcome = "failed"
)

// Entry is one row of the download history ledger.
type Entry struct {
	MessageID    int64     `json:"-"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size_bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Summary aggregates per-outcome counts for a run.
type Summary struct {
	Downloaded int
	Duplicates int
	Filtered   int
	Failed     int
	Tracked    int
}

// Add increments the counter for the given outcome.
func (s *Summary) Add(o Outcome) {
	switch o {
	case OutcomeDownloaded:
		s.Downloaded++
	case OutcomeDuplicate:
		s.Duplicates++
	case OutcomeFiltered:
		s.Filtered++
	case OutcomeFailed:
		s.Failed++
	}
}

package models

import "time"

// Progress holds the aggregate counters of a batch run.
// Inject runs also report disclosure and FAQ counters.
type Progress struct {
	TotalFiles        int  `json:"totalFiles"`
	FilesChanged      int  `json:"filesChanged"`
	TotalFixes        int  `json:"totalFixes"`
	Warnings          int  `json:"warnings"`
	DisclosureUpdates *int `json:"disclosureUpdates,omitempty"`
	FAQUpdates        *int `json:"faqUpdates,omitempty"`
}

// RunRecord is one named section of the shared run log.
type RunRecord struct {
	Timestamp  string   `json:"timestamp"`
	DurationMs int64    `json:"durationMs"`
	Progress   Progress `json:"progress"`
	Changes    []string `json:"changes"`
	Warnings   []string `json:"warnings"`
}

// NewRunRecord stamps a record with the start time and elapsed duration.
func NewRunRecord(start time.Time, progress Progress, changes, warnings []string) RunRecord {
	if changes == nil {
		changes = []string{}
	}
	if warnings == nil {
		warnings = []string{}
	}
	return RunRecord{
		Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		DurationMs: time.Since(start).Milliseconds(),
		Progress:   progress,
		Changes:    changes,
		Warnings:   warnings,
	}
}

// FAQEntry is one question/answer pair of the FAQ bank.
type FAQEntry struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

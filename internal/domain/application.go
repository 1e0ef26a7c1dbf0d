package domain

import "time"

type ApplyMethod string

const (
	MethodDirect        ApplyMethod = "direct"
	MethodEmailFallback ApplyMethod = "email-fallback"
)

// Application records one submitted application in a user's history. The
// posting fields are a snapshot; the posting itself may be cleaned up later.
type Application struct {
	PostingID       string      `json:"postingId"`
	URL             string      `json:"url"`
	Title           string      `json:"title"`
	Company         string      `json:"company"`
	Source          string      `json:"source"`
	AppliedAt       time.Time   `json:"appliedAt"`
	Method          ApplyMethod `json:"method"`
	Success         bool        `json:"success"`
	CoverLetterPath string      `json:"coverLetterPath,omitempty"`
	ContactEmail    string      `json:"contactEmail,omitempty"`

	ResponseReceived bool       `json:"responseReceived"`
	ResponseAt       *time.Time `json:"responseAt,omitempty"`
}

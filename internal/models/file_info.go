package models

import "time"

// FileInfo represents metadata about a stored crash log or report.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "scanned", "failed", "report"
	ReportID   string    `json:"reportId,omitempty"`
}

package template

import "time"

// Template is a downloadable document offered to applicants.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	CreatedTime time.Time `json:"createdTime"`
	WebViewLink string    `json:"webViewLink,omitempty"`
	DownloadURL string    `json:"downloadUrl"`
}

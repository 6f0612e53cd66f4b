package submission

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

const (
	Anonymous      = "anonymous"
	UnknownContact = "unknown"

	FieldClub        = "club"
	FieldTeacherName = "teacherName"
	FieldLineID      = "lineId"
	FieldEmail       = "email"
	FieldItems       = "items"
)

// FileRecord describes one stored attachment.
type FileRecord struct {
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"storedName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploadedAt   time.Time `json:"uploadedAt"`
	ExternalRef  string    `json:"externalRef,omitempty"`
	WebViewLink  string    `json:"webViewLink,omitempty"`
}

// Ref is the key the storage backend knows this file by.
func (f FileRecord) Ref() string {
	if f.ExternalRef != "" {
		return f.ExternalRef
	}
	return f.StoredName
}

type FileSet = datatypes.JSONType[map[string]FileRecord]

// Message is one entry of a submission's conversation. Rows are append-only.
type Message struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	SubmissionID string    `json:"-" gorm:"size:64;index"`
	From         string    `json:"from" gorm:"size:16"`
	FromContact  string    `json:"fromContact"`
	Content      string    `json:"content" gorm:"type:text"`
	Timestamp    time.Time `json:"timestamp"`
}

type Submission struct {
	ID               string            `json:"id" gorm:"primaryKey;size:64"`
	Club             string            `json:"-" gorm:"size:128;index"`
	Fields           datatypes.JSONMap `json:"fields"`
	Files            FileSet           `json:"files"`
	SubmittedBy      string            `json:"submittedBy" gorm:"size:128;index"`
	SubmitterContact string            `json:"submitterContact"`
	Status           Status            `json:"status" gorm:"size:16;index;default:'pending'"`
	ReviewNote       string            `json:"reviewNote,omitempty" gorm:"type:text"`
	ReviewedBy       string            `json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time        `json:"reviewedAt,omitempty"`
	Messages         []Message         `json:"messages" gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `json:"createdAt" gorm:"index"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// New builds a pending submission with empty file and message sets.
func New(id string, fields map[string]interface{}, now time.Time) *Submission {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	s := &Submission{
		ID:        id,
		Fields:    datatypes.JSONMap(fields),
		Files:     datatypes.NewJSONType(map[string]FileRecord{}),
		Status:    StatusPending,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Club = s.FieldString(FieldClub)
	return s
}

// NewID returns sub_{unixMillis}_{9 random chars}.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("sub_%d_%s", now.UnixMilli(), suffix)
}

func (s *Submission) BeforeSave(tx *gorm.DB) error {
	s.Club = s.FieldString(FieldClub)
	return nil
}

// FieldString returns a text field, or "" when absent or not a string.
func (s *Submission) FieldString(key string) string {
	if s.Fields == nil {
		return ""
	}
	v, _ := s.Fields[key].(string)
	return v
}

// FileMap never returns nil.
func (s *Submission) FileMap() map[string]FileRecord {
	m := s.Files.Data()
	if m == nil {
		return map[string]FileRecord{}
	}
	return m
}

func (s *Submission) SetFiles(m map[string]FileRecord) {
	if m == nil {
		m = map[string]FileRecord{}
	}
	s.Files = datatypes.NewJSONType(m)
}

// Normalize fills nil collections so the JSON form always carries {} and [].
func (s *Submission) Normalize() {
	if s.Fields == nil {
		s.Fields = datatypes.JSONMap{}
	}
	if s.Files.Data() == nil {
		s.SetFiles(nil)
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.Club == "" {
		s.Club = s.FieldString(FieldClub)
	}
}

func (s *Submission) OwnedBy(uid string) bool {
	return uid != "" && s.SubmittedBy == uid
}

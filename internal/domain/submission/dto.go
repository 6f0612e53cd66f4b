package submission

import "time"

type Filter struct {
	Status Status
	Club   string
	Limit  int
}

const DefaultListLimit = 50

func (f Filter) Match(s *Submission) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Club != "" && s.FieldString(FieldClub) != f.Club {
		return false
	}
	return true
}

// ReviewPatch carries the fields a review writes.
type ReviewPatch struct {
	Status     Status
	ReviewNote string
	ReviewedBy string
	ReviewedAt time.Time
}

// Apply writes the patch onto s and refreshes UpdatedAt.
func (p ReviewPatch) Apply(s *Submission) {
	at := p.ReviewedAt
	s.Status = p.Status
	s.ReviewNote = p.ReviewNote
	s.ReviewedBy = p.ReviewedBy
	s.ReviewedAt = &at
	s.UpdatedAt = at
}

type UpdateStatusDTO struct {
	Status     string `json:"status" binding:"required" example:"approved"`
	ReviewNote string `json:"reviewNote" example:"ok"`
}

type CreateMessageDTO struct {
	Content string `json:"content" example:"請補上保險證明"`
}

type Stats struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}

func (s *Stats) Add(status Status, n int64) {
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusApproved:
		s.Approved += n
	case StatusRejected:
		s.Rejected += n
	}
	s.Total += n
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// CommentRecord is a stored comment row with its author metadata
type CommentRecord struct {
	ID              uuid.UUID  `json:"id"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	AuthorName      string     `json:"author_name,omitempty"`
	AuthorEmail     string     `json:"author_email,omitempty"`
	AuthorIP        string     `json:"author_ip,omitempty"`
	AuthorUserAgent string     `json:"author_user_agent,omitempty"`
	AuthorURL       string     `json:"author_url,omitempty"`
	Content         string     `json:"content"`
	AnonymizedAt    *time.Time `json:"anonymized_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsAnonymized reports whether the comment has been through a scrub
func (c *CommentRecord) IsAnonymized() bool {
	return c.AnonymizedAt != nil
}

// CommentFilters contains filtering options for listing comments
type CommentFilters struct {
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	Anonymized    *bool      `json:"anonymized,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}

// CommentListResponse contains a paginated comment list
type CommentListResponse struct {
	Comments   []*CommentRecord `json:"comments"`
	TotalCount int              `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

package dto

import (
	"time"

	"github.com/spec-kit/sla-guard/internal/service"
)

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// UpdateCommentRequest payload.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// CommentResponse is one thread entry.
type CommentResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewCommentResponse maps a comment view.
func NewCommentResponse(view *service.CommentView) CommentResponse {
	c := view.Comment
	return CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		UserID:     c.UserID,
		UserName:   view.AuthorName,
		Content:    c.Content,
		IsInternal: c.Internal,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// NewCommentResponses maps a thread.
func NewCommentResponses(views []service.CommentView) []CommentResponse {
	out := make([]CommentResponse, 0, len(views))
	for i := range views {
		out = append(out, NewCommentResponse(&views[i]))
	}
	return out
}

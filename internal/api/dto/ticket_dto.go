package dto

import (
	"time"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Customer    string                `json:"customer"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	AssigneeID  *int64                `json:"assignee_id"`
}

// UpdateTicketRequest payload. Absent fields are left unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Customer    *string                `json:"customer"`
	Description *string                `json:"description"`
	Priority    *domain.TicketPriority `json:"priority"`
	AssigneeID  *int64                 `json:"assignee_id"`
}

// ProgressRequest carries work notes.
type ProgressRequest struct {
	Notes string `json:"notes"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	NewAssigneeID int64   `json:"new_assignee_id"`
	Reason        *string `json:"reason"`
}

// TicketResponse is a ticket with its live risk figures.
type TicketResponse struct {
	ID               int64                 `json:"id"`
	Title            string                `json:"title"`
	Customer         string                `json:"customer"`
	Description      string                `json:"description"`
	Priority         domain.TicketPriority `json:"priority"`
	Status           domain.TicketStatus   `json:"status"`
	AssigneeID       *int64                `json:"assignee_id"`
	AssigneeName     *string               `json:"assignee_name"`
	CreatedByUserID  *int64                `json:"created_by_user_id"`
	CreatorName      *string               `json:"creator_name"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	ResolvedAt       *time.Time            `json:"resolved_at"`
	SLALimitHours    float64               `json:"sla_limit_hours"`
	TimeElapsedHours float64               `json:"time_elapsed_hours"`
	RiskLevel        domain.RiskTier       `json:"risk_level"`
	RiskPercentage   float64               `json:"risk_percentage"`
}

// ActivityLogResponse is one audit trail entry.
type ActivityLogResponse struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	UserID    *int64    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Action    string    `json:"action"`
	Details   *string   `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTicketResponse maps a service view.
func NewTicketResponse(view *service.TicketView) TicketResponse {
	t := view.Ticket
	return TicketResponse{
		ID:               t.ID,
		Title:            t.Title,
		Customer:         t.Customer,
		Description:      t.Description,
		Priority:         t.Priority,
		Status:           t.Status,
		AssigneeID:       t.AssigneeID,
		AssigneeName:     optional(view.AssigneeName),
		CreatedByUserID:  t.CreatedByID,
		CreatorName:      optional(view.CreatorName),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		ResolvedAt:       t.ResolvedAt,
		SLALimitHours:    t.SLALimitHours,
		TimeElapsedHours: round2(view.Assessment.ElapsedHours),
		RiskLevel:        view.Assessment.Tier,
		RiskPercentage:   round2(view.Assessment.RiskPercentage),
	}
}

// NewTicketResponses maps a list of views.
func NewTicketResponses(views []service.TicketView) []TicketResponse {
	out := make([]TicketResponse, 0, len(views))
	for i := range views {
		out = append(out, NewTicketResponse(&views[i]))
	}
	return out
}

// NewActivityLogResponses maps audit entries.
func NewActivityLogResponses(views []service.ActivityLogView) []ActivityLogResponse {
	out := make([]ActivityLogResponse, 0, len(views))
	for _, v := range views {
		out = append(out, ActivityLogResponse{
			ID:        v.Entry.ID,
			TicketID:  v.Entry.TicketID,
			UserID:    v.Entry.ActorID,
			UserName:  v.ActorName,
			Action:    v.Entry.Action,
			Details:   v.Entry.Details,
			Timestamp: v.Entry.Timestamp,
		})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

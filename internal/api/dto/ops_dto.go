package dto

import (
	"math"
	"time"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/service"
)

// NotificationResponse is one inbox entry.
type NotificationResponse struct {
	ID        int64                       `json:"id"`
	UserID    int64                       `json:"user_id"`
	Message   string                      `json:"message"`
	Type      domain.NotificationSeverity `json:"type"`
	TicketID  *int64                      `json:"ticket_id"`
	Read      bool                        `json:"read"`
	CreatedAt time.Time                   `json:"created_at"`
}

// SLAConfigResponse is the budget of one priority.
type SLAConfigResponse struct {
	Priority domain.TicketPriority `json:"priority"`
	SLAHours float64               `json:"sla_hours"`
}

// UpdateSLARequest payload.
type UpdateSLARequest struct {
	SLAHours float64 `json:"sla_hours"`
}

// TickReportResponse summarises one monitor pass.
type TickReportResponse struct {
	CheckedAt          time.Time                   `json:"checked_at"`
	Scanned            int                         `json:"scanned"`
	TiersChanged       int                         `json:"tiers_changed"`
	HighRiskAlerts     int                         `json:"high_risk_alerts"`
	Failed             int                         `json:"failed"`
	Escalated          int                         `json:"escalated"`
	EscalationFailures int                         `json:"escalation_failures"`
	Outcomes           []service.EscalationOutcome `json:"escalations"`
	Error              string                      `json:"error,omitempty"`
}

// NewNotificationResponse maps a notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Message:   n.Message,
		Type:      n.Severity,
		TicketID:  n.TicketID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// NewSLAConfigResponses maps SLA configs.
func NewSLAConfigResponses(configs []domain.SLAConfig) []SLAConfigResponse {
	out := make([]SLAConfigResponse, 0, len(configs))
	for _, c := range configs {
		out = append(out, SLAConfigResponse{Priority: c.Priority, SLAHours: c.Hours})
	}
	return out
}

// NewTickReportResponse maps a monitor report.
func NewTickReportResponse(r service.TickReport) TickReportResponse {
	resp := TickReportResponse{
		CheckedAt:          r.Now,
		Scanned:            r.Scanned,
		TiersChanged:       r.TiersChanged,
		HighRiskAlerts:     r.HighRiskAlerts,
		Failed:             r.Failed,
		Escalated:          r.Escalated,
		EscalationFailures: r.EscalationFailures,
		Outcomes:           r.Outcomes,
	}
	if resp.Outcomes == nil {
		resp.Outcomes = []service.EscalationOutcome{}
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

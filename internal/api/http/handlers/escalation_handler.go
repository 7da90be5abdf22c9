package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-guard/internal/api/dto"
	"github.com/spec-kit/sla-guard/internal/service"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// defaultEscalationReason is used when a manager escalates without a body or reason.
const defaultEscalationReason = "High-risk ticket requiring senior expertise"

// EscalationHandler exposes manager escalation actions.
type EscalationHandler struct {
	escalations *service.EscalationService
	tickets     *service.TicketService
}

// NewEscalationHandler constructs handler.
func NewEscalationHandler(escalations *service.EscalationService, tickets *service.TicketService) *EscalationHandler {
	return &EscalationHandler{escalations: escalations, tickets: tickets}
}

// Escalate POST /tickets/:id/escalate.
func (h *EscalationHandler) Escalate(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = defaultEscalationReason
	}
	if _, err := h.escalations.Escalate(c.UserContext(), id, req.Reason, &user.ID); err != nil {
		return err
	}
	return h.respond(c, id)
}

// Reassign POST /tickets/:id/reassign.
func (h *EscalationHandler) Reassign(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.NewAssigneeID <= 0 {
		return apperrors.NewValidationError("new_assignee_id is required", map[string]any{"field": "new_assignee_id"})
	}
	if _, err := h.escalations.Reassign(c.UserContext(), id, req.NewAssigneeID, &user.ID, req.Reason); err != nil {
		return err
	}
	return h.respond(c, id)
}

func (h *EscalationHandler) respond(c *fiber.Ctx, id int64) error {
	user, _ := currentUser(c)
	view, err := h.tickets.Get(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view)})
}

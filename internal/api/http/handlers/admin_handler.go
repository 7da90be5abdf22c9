package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-guard/internal/api/dto"
	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/service"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// TickTrigger runs a monitor pass on demand. worker.SLAMonitor implements it.
type TickTrigger interface {
	TriggerNow(ctx context.Context) (service.TickReport, bool)
}

// AdminHandler serves manager-only SLA, analytics and monitor endpoints.
type AdminHandler struct {
	sla       *service.SLAService
	analytics *service.AnalyticsService
	monitor   TickTrigger
}

// NewAdminHandler constructs handler.
func NewAdminHandler(sla *service.SLAService, analytics *service.AnalyticsService, monitor TickTrigger) *AdminHandler {
	return &AdminHandler{sla: sla, analytics: analytics, monitor: monitor}
}

// ListSLA GET /sla/config.
func (h *AdminHandler) ListSLA(c *fiber.Ctx) error {
	configs, err := h.sla.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLAConfigResponses(configs)})
}

// UpdateSLA PUT /sla/config/:priority.
func (h *AdminHandler) UpdateSLA(c *fiber.Ctx) error {
	var req dto.UpdateSLARequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	cfg, err := h.sla.Update(c.UserContext(), domain.TicketPriority(strings.ToUpper(c.Params("priority"))), req.SLAHours)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLAConfigResponse{Priority: cfg.Priority, SLAHours: cfg.Hours}})
}

// Overview GET /analytics/overview.
func (h *AdminHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.analytics.Overview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": overview})
}

// RiskDistribution GET /analytics/risk-distribution.
func (h *AdminHandler) RiskDistribution(c *fiber.Ctx) error {
	dist, err := h.analytics.RiskDistribution(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dist})
}

// TechnicianWorkload GET /analytics/technician-workload.
func (h *AdminHandler) TechnicianWorkload(c *fiber.Ctx) error {
	rows, err := h.analytics.TechnicianWorkload(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rows})
}

// RunMonitor POST /monitor/run. A pass already in flight yields 409.
func (h *AdminHandler) RunMonitor(c *fiber.Ctx) error {
	report, ran := h.monitor.TriggerNow(c.UserContext())
	if !ran {
		return apperrors.NewConflict("a monitor pass is already running", nil)
	}
	return c.JSON(fiber.Map{"data": dto.NewTickReportResponse(report)})
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
	"github.com/spec-kit/sla-guard/internal/sla"
)

// TickReport summarises one monitor pass.
type TickReport struct {
	Now                time.Time           `json:"now"`
	Scanned            int                 `json:"scanned"`
	TiersChanged       int                 `json:"tiers_changed"`
	HighRiskAlerts     int                 `json:"high_risk_alerts"`
	Failed             int                 `json:"failed"`
	Escalated          int                 `json:"escalated"`
	EscalationFailures int                 `json:"escalation_failures"`
	Outcomes           []EscalationOutcome `json:"outcomes"`
	Err                error               `json:"-"`
}

// MonitorService re-tiers every active ticket and then runs the escalation sweep.
type MonitorService struct {
	store       repository.Store
	escalations *EscalationService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     Metrics
}

// MonitorDependencies bundles collaborators for the monitor.
type MonitorDependencies struct {
	Store       repository.Store
	Escalations *EscalationService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     Metrics
}

// NewMonitorService constructs the service.
func NewMonitorService(deps MonitorDependencies) *MonitorService {
	m := &MonitorService{
		store:       deps.Store,
		escalations: deps.Escalations,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.metrics == nil {
		m.metrics = nopMetrics{}
	}
	return m
}

// RunTick evaluates every active ticket against the single instant now. A
// failure to list tickets abandons the tick; per-ticket failures are counted
// and skipped.
func (m *MonitorService) RunTick(ctx context.Context, now time.Time) TickReport {
	started := time.Now()
	report := TickReport{Now: now}

	tickets, err := m.store.Tickets().ListActive(ctx)
	if err != nil {
		report.Err = err
		m.metrics.ObserveTick(time.Since(started), 0, true)
		m.logger.Error("sla monitor tick abandoned", zap.Time("now", now), zap.Error(err))
		return report
	}

	for i := range tickets {
		ticket := &tickets[i]
		report.Scanned++

		assessment := sla.AssessTicket(ticket, now)
		if assessment.Tier == ticket.RiskTier {
			continue
		}
		changed, alerts, err := m.applyTier(ctx, ticket, assessment, now)
		if err != nil {
			report.Failed++
			m.logger.Warn("sla tier update failed",
				zap.Int64("ticket_id", ticket.ID),
				zap.String("tier", string(assessment.Tier)),
				zap.Error(err))
			continue
		}
		if changed {
			report.TiersChanged++
			report.HighRiskAlerts += alerts
		}
	}

	if m.escalations != nil {
		report.Outcomes = m.escalations.AutoEscalateSweep(ctx)
		for _, outcome := range report.Outcomes {
			if outcome.Escalated {
				report.Escalated++
			} else {
				report.EscalationFailures++
			}
		}
	}

	m.metrics.ObserveTick(time.Since(started), report.Scanned, false)
	m.logger.Info("sla monitor tick completed",
		zap.Time("now", now),
		zap.Int("scanned", report.Scanned),
		zap.Int("tiers_changed", report.TiersChanged),
		zap.Int("high_risk_alerts", report.HighRiskAlerts),
		zap.Int("failed", report.Failed),
		zap.Int("escalated", report.Escalated),
		zap.Int("escalation_failures", report.EscalationFailures),
		zap.Duration("duration", time.Since(started)))
	return report
}

// applyTier persists the new tier and, on a move into HIGH_RISK or BREACHED,
// notifies managers in the same transaction.
func (m *MonitorService) applyTier(ctx context.Context, ticket *domain.Ticket, assessment sla.Assessment, now time.Time) (bool, int, error) {
	previous := ticket.RiskTier
	var (
		changed bool
		pending []events.Event
	)
	err := m.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		changed, err = tx.Tickets().UpdateRiskTier(ctx, ticket.ID, assessment.Tier)
		if err != nil || !changed {
			return err
		}
		ticket.RiskTier = assessment.Tier
		pending = append(pending, events.Event{
			Type:     events.EventRiskTierChanged,
			TicketID: ticket.ID,
			Actor:    events.SystemActor,
			Payload: events.RiskTierChangedPayload{
				OldTier:        previous,
				NewTier:        assessment.Tier,
				RiskPercentage: assessment.RiskPercentage,
			},
		})
		if !assessment.Tier.NeedsEscalation() || m.escalations == nil {
			return nil
		}
		alerts, err := m.escalations.NotifyHighRisk(ctx, tx, ticket)
		if err != nil {
			return err
		}
		pending = append(pending, alerts...)
		return nil
	})
	if err != nil {
		ticket.RiskTier = previous
		return false, 0, err
	}
	if !changed {
		return false, 0, nil
	}

	m.metrics.ObserveTierTransition(assessment.Tier)
	publishAll(ctx, m.dispatcher, now, pending)
	return true, len(pending) - 1, nil
}

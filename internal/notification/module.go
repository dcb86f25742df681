// Package notification provides event handlers for sending notifications
// (email and in-app) in response to case events.
// This module subscribes to events and inverts the dependency: the cases
// module does not need to know about email providers or templates.
package notification

import (
	"context"
	"errors"
	"fmt"

	"lexmatch_backend/internal/email"
	"lexmatch_backend/internal/events"
	apphttp "lexmatch_backend/internal/http"
	notifhandler "lexmatch_backend/internal/notification/handler"
	"lexmatch_backend/internal/notification/inapp"
	"lexmatch_backend/platform/logger"

	"github.com/google/uuid"
)

const resourceTypeCase = "case"

// Module handles all notification-related event subscriptions.
type Module struct {
	sender       email.Sender
	log          *logger.Logger
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
}

var _ apphttp.Module = (*Module)(nil)

// New creates a new notification module.
func New(store inapp.Store, sender email.Sender, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	inAppSvc := inapp.NewService(store, log)

	return &Module{
		sender:       sender,
		log:          log,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)
}

// InAppService exposes the inbox service.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.CaseAnalysisUrgent{}.EventName(), m)
	bus.Subscribe(events.CaseAdvocatesRecommended{}.EventName(), m)
	bus.Subscribe(events.CaseAdvocateHired{}.EventName(), m)
	bus.Subscribe(events.CaseResolved{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.CaseAnalysisUrgent:
		return m.handleCaseAnalysisUrgent(ctx, e)
	case events.CaseAdvocatesRecommended:
		return m.handleCaseAdvocatesRecommended(ctx, e)
	case events.CaseAdvocateHired:
		return m.handleCaseAdvocateHired(ctx, e)
	case events.CaseResolved:
		return m.handleCaseResolved(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleCaseAnalysisUrgent(ctx context.Context, e events.CaseAnalysisUrgent) error {
	var errs []error
	if e.ClientEmail != "" {
		if err := m.sender.SendCaseUrgentEmail(ctx, e.ClientEmail, e.CaseNumber, e.Title, e.RiskScore); err != nil {
			m.log.Error("failed to send case urgent email", "caseId", e.CaseID, "email", e.ClientEmail, "error", err)
			errs = append(errs, err)
		} else {
			m.log.Info("case urgent email sent", "caseId", e.CaseID, "email", e.ClientEmail)
		}
	}

	errs = append(errs, m.notifyClient(ctx, e.ClientID, e.CaseID, inapp.SendParams{
		Title:    "Case prioritised",
		Content:  fmt.Sprintf("Case %s was assessed as urgent (risk score %d).", e.CaseNumber, e.RiskScore),
		Category: "warning",
	}))
	return errors.Join(errs...)
}

func (m *Module) handleCaseAdvocatesRecommended(ctx context.Context, e events.CaseAdvocatesRecommended) error {
	var errs []error
	if e.ClientEmail != "" {
		if err := m.sender.SendRecommendationsReadyEmail(ctx, e.ClientEmail, e.CaseNumber, e.Count); err != nil {
			m.log.Error("failed to send recommendations email", "caseId", e.CaseID, "email", e.ClientEmail, "error", err)
			errs = append(errs, err)
		} else {
			m.log.Info("recommendations email sent", "caseId", e.CaseID, "email", e.ClientEmail, "count", e.Count)
		}
	}

	params := inapp.SendParams{
		Title:    "Advocates recommended",
		Content:  fmt.Sprintf("%d advocate(s) were recommended for case %s.", e.Count, e.CaseNumber),
		Category: "info",
	}
	if e.Count == 0 {
		params.Title = "No advocates available"
		params.Content = fmt.Sprintf("No advocates are currently available for case %s.", e.CaseNumber)
		params.Category = "warning"
	}
	errs = append(errs, m.notifyClient(ctx, e.ClientID, e.CaseID, params))
	return errors.Join(errs...)
}

func (m *Module) handleCaseAdvocateHired(ctx context.Context, e events.CaseAdvocateHired) error {
	var errs []error
	if e.ClientEmail != "" {
		if err := m.sender.SendAdvocateHiredEmail(ctx, e.ClientEmail, e.CaseNumber, e.AdvocateName); err != nil {
			m.log.Error("failed to send advocate hired email", "caseId", e.CaseID, "email", e.ClientEmail, "error", err)
			errs = append(errs, err)
		} else {
			m.log.Info("advocate hired email sent", "caseId", e.CaseID, "email", e.ClientEmail)
		}
	}
	if e.AdvocateEmail != "" {
		if err := m.sender.SendCaseAssignmentEmail(ctx, e.AdvocateEmail, e.AdvocateName, e.CaseNumber); err != nil {
			m.log.Error("failed to send case assignment email", "caseId", e.CaseID, "advocateId", e.AdvocateID, "error", err)
			errs = append(errs, err)
		} else {
			m.log.Info("case assignment email sent", "caseId", e.CaseID, "advocateId", e.AdvocateID)
		}
	}

	errs = append(errs, m.notifyClient(ctx, e.ClientID, e.CaseID, inapp.SendParams{
		Title:    "Advocate assigned",
		Content:  fmt.Sprintf("%s is now the advocate on case %s.", e.AdvocateName, e.CaseNumber),
		Category: "success",
	}))
	return errors.Join(errs...)
}

func (m *Module) handleCaseResolved(ctx context.Context, e events.CaseResolved) error {
	var errs []error
	if e.ClientEmail != "" {
		if err := m.sender.SendCaseResolvedEmail(ctx, e.ClientEmail, e.CaseNumber, e.Outcome, e.Summary); err != nil {
			m.log.Error("failed to send case resolved email", "caseId", e.CaseID, "email", e.ClientEmail, "error", err)
			errs = append(errs, err)
		} else {
			m.log.Info("case resolved email sent", "caseId", e.CaseID, "email", e.ClientEmail)
		}
	}

	errs = append(errs, m.notifyClient(ctx, e.ClientID, e.CaseID, inapp.SendParams{
		Title:    "Case resolved",
		Content:  fmt.Sprintf("Case %s was resolved with outcome %s.", e.CaseNumber, e.Outcome),
		Category: "success",
	}))
	return errors.Join(errs...)
}

func (m *Module) notifyClient(ctx context.Context, clientID, caseID uuid.UUID, p inapp.SendParams) error {
	if clientID == uuid.Nil {
		return nil
	}
	p.UserID = clientID
	p.ResourceID = &caseID
	p.ResourceType = resourceTypeCase
	_, err := m.inAppService.Send(ctx, p)
	return err
}

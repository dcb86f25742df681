// Package service drives cases through their lifecycle. Transitions run
// under a per-case lock and are persisted with optimistic versioning; model
// calls for analysis and matching complete before the lock is taken.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"lexmatch_backend/internal/cases/analysis"
	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/internal/cases/matching"
	"lexmatch_backend/internal/cases/recommendations"
	"lexmatch_backend/internal/cases/repository"
	"lexmatch_backend/internal/events"
	"lexmatch_backend/platform/ai"
	"lexmatch_backend/platform/apperr"
	"lexmatch_backend/platform/logger"
	"lexmatch_backend/platform/redislock"
	"lexmatch_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const maxUpdateAttempts = 3

// Analyzer classifies a case. It never fails; failures yield a default.
type Analyzer interface {
	Analyze(ctx context.Context, title, description, category string) analysis.Result
}

// Ranker scores advocates for an analysed case. It never fails.
type Ranker interface {
	Rank(ctx context.Context, analysis domain.AIAnalysis, candidates []domain.AdvocateCandidate) matching.Result
}

// CaseLocker serializes work on one case across processes.
type CaseLocker interface {
	Acquire(ctx context.Context, name string) (*redislock.Lease, error)
}

// Dispatcher hands analysis and matching passes to a task queue.
type Dispatcher interface {
	DispatchAnalysis(ctx context.Context, caseID uuid.UUID) error
	DispatchMatch(ctx context.Context, caseID uuid.UUID) error
}

// Dependencies are the collaborators of Service. CallLogger, EventBus and
// Clock are optional.
type Dependencies struct {
	Cases           repository.CaseRepository
	Advocates       repository.AdvocateReader
	Recommendations recommendations.Store
	Analyzer        Analyzer
	Ranker          Ranker
	CallLogger      ai.CallLogger
	EventBus        events.Bus
	Logger          *logger.Logger
	Clock           func() time.Time
}

// Service provides the case lifecycle operations.
type Service struct {
	cases      repository.CaseRepository
	advocates  repository.AdvocateReader
	store      recommendations.Store
	analyzer   Analyzer
	ranker     Ranker
	calls      ai.CallLogger
	eventBus   events.Bus
	log        *logger.Logger
	now        func() time.Time
	machine    *domain.StateMachine
	locks      *caseLocks
	locker     CaseLocker
	dispatcher Dispatcher
	flights    singleflight.Group
	background sync.WaitGroup
}

// New creates a case service.
func New(deps Dependencies) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	calls := deps.CallLogger
	if calls == nil {
		calls = ai.NewLogCallLogger(log)
	}
	return &Service{
		cases:     deps.Cases,
		advocates: deps.Advocates,
		store:     deps.Recommendations,
		analyzer:  deps.Analyzer,
		ranker:    deps.Ranker,
		calls:     calls,
		eventBus:  deps.EventBus,
		log:       log,
		now:       clock,
		machine:   domain.NewStateMachine(clock),
		locks:     newCaseLocks(),
	}
}

// SetCaseLocker adds a cross-process lock on top of the in-process one.
func (s *Service) SetCaseLocker(locker CaseLocker) {
	s.locker = locker
}

// SetDispatcher routes analysis and matching passes to a task queue.
// Without one, they run in detached goroutines.
func (s *Service) SetDispatcher(dispatcher Dispatcher) {
	s.dispatcher = dispatcher
}

// Wait blocks until in-process background passes have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Submit opens a case and schedules its analysis.
func (s *Service) Submit(ctx context.Context, in domain.SubmitInput) (domain.CaseRecord, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	in.Title = sanitize.Line(in.Title)
	in.Description = sanitize.Text(in.Description)
	in.Category = sanitize.Line(in.Category)
	in.ClientEmail = strings.ToLower(strings.TrimSpace(in.ClientEmail))
	in.Priority = domain.Priority(strings.ToLower(strings.TrimSpace(string(in.Priority))))
	// The sequence year and the case number year come from one reading.
	in.SubmittedAt = s.now().UTC()

	// Validate before consuming a sequence number so rejected submissions
	// leave no gaps.
	if _, err := s.machine.Submit(in, 1); err != nil {
		return domain.CaseRecord{}, err
	}

	seq, err := s.cases.NextCaseSequence(ctx, in.SubmittedAt.Year())
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("next case sequence: %w", err)
	}
	rec, err := s.machine.Submit(in, seq)
	if err != nil {
		return domain.CaseRecord{}, err
	}

	created, err := s.cases.Create(ctx, rec)
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("create case: %w", err)
	}
	s.log.WithContext(ctx).CaseTransition(created.ID.String(), string(domain.ActionSubmit), string(domain.StatusNone), string(created.Status))

	s.dispatchAnalysis(ctx, created.ID)
	return created, nil
}

// Get returns one case.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.CaseRecord, error) {
	return s.get(ctx, id)
}

// List returns a client's cases, newest first.
func (s *Service) List(ctx context.Context, clientID uuid.UUID, params repository.ListParams) ([]domain.CaseRecord, error) {
	if params.Status != "" && !params.Status.Valid() {
		return nil, apperr.Validation("unknown status filter").WithDetails(map[string]string{"status": string(params.Status)})
	}
	items, err := s.cases.ListByClient(ctx, clientID, params)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return items, nil
}

// Timeline returns the case's events in append order.
func (s *Service) Timeline(ctx context.Context, id uuid.UUID) ([]domain.TimelineEvent, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return rec.Timeline, nil
}

// Recommendations returns the latest recommendation list, best first. The
// store is served only while it holds the same pass as the case record.
func (s *Service) Recommendations(ctx context.Context, id uuid.UUID) ([]domain.MatchResult, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	current := append([]domain.MatchResult{}, rec.RecommendedAdvocates...)
	recommendations.SortForDisplay(current)

	latest, err := s.store.Latest(ctx, id)
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("load recommendations", err)
		return current, nil
	}
	if !recommendations.Equal(latest, current) {
		s.log.WithContext(ctx).Warn("recommendation store behind case record", "caseId", id)
		return current, nil
	}
	return latest, nil
}

// RequestAnalysis queues analysis for a case that is waiting for it, or whose
// matching pass never completed. The returned record is the state at the
// time of the request.
func (s *Service) RequestAnalysis(ctx context.Context, id uuid.UUID) (domain.CaseRecord, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	if rec.Status != domain.StatusAnalyzing && !awaitingRecommendations(rec) {
		if _, ok := domain.Next(rec.Status, domain.ActionStartAnalysis); !ok {
			return domain.CaseRecord{}, &domain.TransitionError{CaseID: id, Action: domain.ActionStartAnalysis, From: rec.Status}
		}
	}
	s.dispatchAnalysis(ctx, id)
	return rec, nil
}

// RequestMatch queues a matching pass for an analysed case.
func (s *Service) RequestMatch(ctx context.Context, id uuid.UUID) (domain.CaseRecord, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	if err := matchable(rec); err != nil {
		return domain.CaseRecord{}, err
	}
	s.dispatchMatch(ctx, id)
	return rec, nil
}

// Analyze classifies the case and, once analysed, runs a matching pass.
// A submitted case is first moved to analyzing. A case already analyzing,
// or analysed without a completed matching pass, is picked up where it
// stopped.
func (s *Service) Analyze(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
	v, err, _ := s.flights.Do("analyze:"+id.String(), func() (interface{}, error) {
		return s.analyze(ctx, id, actor)
	})
	if err != nil {
		return domain.CaseRecord{}, err
	}
	return v.(domain.CaseRecord).Clone(), nil
}

func (s *Service) analyze(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	switch {
	case awaitingRecommendations(rec):
		return s.Match(ctx, id, actor)
	case rec.Status != domain.StatusAnalyzing:
		rec, err = s.mutate(ctx, id, domain.ActionStartAnalysis, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
			return s.machine.BeginAnalysis(cur, actor)
		})
		if err != nil {
			return domain.CaseRecord{}, err
		}
	}

	result := s.analyzer.Analyze(ctx, rec.Title, rec.Description, rec.Category)
	s.logCall(ctx, id, result.Call)

	analyzed, err := s.mutate(ctx, id, domain.ActionCompleteAnalysis, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.CompleteAnalysis(cur, result.Analysis, actor)
	})
	if err != nil {
		return domain.CaseRecord{}, err
	}

	if analyzed.AIAnalysis != nil && analyzed.AIAnalysis.UrgencyLevel == domain.UrgencyCritical {
		s.publish(ctx, events.CaseAnalysisUrgent{
			BaseEvent:   events.NewBaseEventAt(s.now()),
			CaseID:      analyzed.ID,
			CaseNumber:  analyzed.CaseNumber,
			ClientID:    analyzed.ClientID,
			ClientEmail: analyzed.ClientEmail,
			Title:       analyzed.Title,
			RiskScore:   analyzed.AIAnalysis.RiskScore,
		})
	}

	return s.Match(ctx, id, actor)
}

// Match ranks the eligible advocates for an analysed case and replaces its
// recommendations wholesale. Concurrent passes for one case share a result.
func (s *Service) Match(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
	v, err, _ := s.flights.Do("match:"+id.String(), func() (interface{}, error) {
		return s.match(ctx, id, actor)
	})
	if err != nil {
		return domain.CaseRecord{}, err
	}
	return v.(domain.CaseRecord).Clone(), nil
}

func (s *Service) match(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
	var (
		rec        domain.CaseRecord
		candidates []domain.AdvocateCandidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = s.get(gctx, id)
		return err
	})
	g.Go(func() error {
		list, err := s.advocates.ListEligible(gctx)
		if err != nil {
			return fmt.Errorf("list eligible advocates: %w", err)
		}
		candidates = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.CaseRecord{}, err
	}

	if err := matchable(rec); err != nil {
		return domain.CaseRecord{}, err
	}

	result := s.ranker.Rank(ctx, *rec.AIAnalysis, eligibleOnly(candidates))
	if result.Call.Status != ai.CallSkipped {
		s.logCall(ctx, id, result.Call)
	}

	updated, err := s.mutate(ctx, id, domain.ActionRecordRecommendations, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.RecordRecommendations(cur, result.Matches, result.Provenance, actor)
	})
	if err != nil {
		return domain.CaseRecord{}, err
	}

	// The case row is authoritative; the store is a read model.
	if err := s.store.Replace(ctx, id, updated.RecommendedAdvocates); err != nil {
		s.log.WithContext(ctx).DatabaseError("replace recommendations", err)
	}

	s.publish(ctx, events.CaseAdvocatesRecommended{
		BaseEvent:   events.NewBaseEventAt(s.now()),
		CaseID:      updated.ID,
		CaseNumber:  updated.CaseNumber,
		ClientID:    updated.ClientID,
		ClientEmail: updated.ClientEmail,
		Count:       len(updated.RecommendedAdvocates),
		Provenance:  string(result.Provenance),
	})
	return updated, nil
}

// Hire assigns an advocate to the case.
func (s *Service) Hire(ctx context.Context, id, advocateID uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
	if advocateID == uuid.Nil {
		return domain.CaseRecord{}, &domain.ValidationError{CaseID: id, Action: domain.ActionHire, Field: "advocateId", Message: "is required"}
	}
	candidate, err := s.advocates.GetByID(ctx, advocateID)
	if errors.Is(err, repository.ErrAdvocateNotFound) {
		return domain.CaseRecord{}, apperr.NotFound("advocate not found")
	}
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("load advocate: %w", err)
	}

	updated, err := s.mutate(ctx, id, domain.ActionHire, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.Hire(cur, advocateID, &candidate, actor)
	})
	if err != nil {
		return domain.CaseRecord{}, err
	}

	s.publish(ctx, events.CaseAdvocateHired{
		BaseEvent:     events.NewBaseEventAt(s.now()),
		CaseID:        updated.ID,
		CaseNumber:    updated.CaseNumber,
		ClientID:      updated.ClientID,
		ClientEmail:   updated.ClientEmail,
		AdvocateID:    candidate.ID,
		AdvocateName:  candidate.Name,
		AdvocateEmail: candidate.Email,
	})
	return updated, nil
}

// Start begins work on an assigned case.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
	return s.mutate(ctx, id, domain.ActionStart, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.Start(cur, actor)
	})
}

// Hold pauses work on the case.
func (s *Service) Hold(ctx context.Context, id uuid.UUID, reason string, actor *uuid.UUID) (domain.CaseRecord, error) {
	reason = sanitize.Line(reason)
	return s.mutate(ctx, id, domain.ActionHold, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.Hold(cur, reason, actor)
	})
}

// Resume continues work on a held case.
func (s *Service) Resume(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
	return s.mutate(ctx, id, domain.ActionResume, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.Resume(cur, actor)
	})
}

// Resolve records the case outcome.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, outcome domain.Outcome, actor *uuid.UUID) (domain.CaseRecord, error) {
	outcome.Summary = sanitize.Text(outcome.Summary)
	updated, err := s.mutate(ctx, id, domain.ActionResolve, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.Resolve(cur, outcome, actor)
	})
	if err != nil {
		return domain.CaseRecord{}, err
	}

	event := events.CaseResolved{
		BaseEvent:   events.NewBaseEventAt(s.now()),
		CaseID:      updated.ID,
		CaseNumber:  updated.CaseNumber,
		ClientID:    updated.ClientID,
		ClientEmail: updated.ClientEmail,
	}
	if updated.Outcome != nil {
		event.Outcome = string(updated.Outcome.Result)
		event.Summary = updated.Outcome.Summary
	}
	s.publish(ctx, event)
	return updated, nil
}

// Close archives a resolved case.
func (s *Service) Close(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
	return s.mutate(ctx, id, domain.ActionClose, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.Close(cur, actor)
	})
}

// Withdraw ends the case before work has started.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, reason string, actor *uuid.UUID) (domain.CaseRecord, error) {
	reason = sanitize.Line(reason)
	return s.mutate(ctx, id, domain.ActionWithdraw, func(cur domain.CaseRecord) (domain.CaseRecord, error) {
		return s.machine.Withdraw(cur, reason, actor)
	})
}

// mutate applies one transition under the case lock. A version conflict
// means another writer slipped past the lock; the transition is rebuilt
// from the fresh record and retried.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, action domain.Action, apply func(domain.CaseRecord) (domain.CaseRecord, error)) (domain.CaseRecord, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		current, err := s.get(ctx, id)
		if err != nil {
			return domain.CaseRecord{}, err
		}
		next, err := apply(current)
		if err != nil {
			return domain.CaseRecord{}, err
		}

		saved, err := s.cases.Update(ctx, next, current.Version)
		if errors.Is(err, repository.ErrVersionConflict) && attempt < maxUpdateAttempts {
			continue
		}
		if err != nil {
			return domain.CaseRecord{}, mapRepositoryError(err)
		}

		s.log.WithContext(ctx).CaseTransition(id.String(), string(action), string(current.Status), string(saved.Status))
		return saved, nil
	}
}

func (s *Service) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	unlockLocal := s.locks.lock(id)
	if s.locker == nil {
		return unlockLocal, nil
	}

	lease, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		unlockLocal()
		return nil, apperr.Wrap(apperr.KindUnavailable, "case is busy, try again", err)
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithContext(ctx).Warn("failed to release case lock", "caseId", id, "error", err)
		}
		unlockLocal()
	}, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (domain.CaseRecord, error) {
	rec, err := s.cases.Get(ctx, id)
	if err != nil {
		return domain.CaseRecord{}, mapRepositoryError(err)
	}
	return rec, nil
}

func (s *Service) dispatchAnalysis(ctx context.Context, caseID uuid.UUID) {
	if s.dispatcher != nil {
		err := s.dispatcher.DispatchAnalysis(ctx, caseID)
		if err == nil {
			return
		}
		s.log.WithContext(ctx).Warn("failed to enqueue case analysis, running in process", "caseId", caseID, "error", err)
	}
	s.runDetached(ctx, caseID, "analysis", s.Analyze)
}

func (s *Service) dispatchMatch(ctx context.Context, caseID uuid.UUID) {
	if s.dispatcher != nil {
		err := s.dispatcher.DispatchMatch(ctx, caseID)
		if err == nil {
			return
		}
		s.log.WithContext(ctx).Warn("failed to enqueue case matching, running in process", "caseId", caseID, "error", err)
	}
	s.runDetached(ctx, caseID, "matching", s.Match)
}

func (s *Service) runDetached(ctx context.Context, caseID uuid.UUID, pass string, run func(context.Context, uuid.UUID, *uuid.UUID) (domain.CaseRecord, error)) {
	bg := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := run(bg, caseID, nil); err != nil {
			s.log.WithContext(bg).Error("background case "+pass+" failed", "caseId", caseID, "error", err)
		}
	}()
}

func (s *Service) logCall(ctx context.Context, caseID uuid.UUID, rec ai.CallRecord) {
	if rec.Failed() {
		s.log.WithContext(ctx).Warn("model call failed, default applied", "caseId", caseID, "operation", rec.Operation, "status", string(rec.Status))
	}
	if err := s.calls.LogCall(ctx, caseID, rec); err != nil {
		s.log.WithContext(ctx).DatabaseError("log ai call", err)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, event)
}

// matchable reports why rec cannot take a matching pass, if it cannot.
func matchable(rec domain.CaseRecord) error {
	if _, ok := domain.Next(rec.Status, domain.ActionRecordRecommendations); !ok {
		return &domain.TransitionError{CaseID: rec.ID, Action: domain.ActionRecordRecommendations, From: rec.Status}
	}
	if rec.AIAnalysis == nil {
		return &domain.ValidationError{CaseID: rec.ID, Action: domain.ActionRecordRecommendations, Field: "aiAnalysis", Message: "is required before matching"}
	}
	return nil
}

// awaitingRecommendations reports whether analysis was saved but the
// matching pass that follows it never completed.
func awaitingRecommendations(rec domain.CaseRecord) bool {
	if rec.Status != domain.StatusPendingAdvocate || rec.AIAnalysis == nil || len(rec.Timeline) == 0 {
		return false
	}
	return rec.Timeline[len(rec.Timeline)-1].Kind == domain.EventAnalysisCompleted
}

func eligibleOnly(candidates []domain.AdvocateCandidate) []domain.AdvocateCandidate {
	out := make([]domain.AdvocateCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Eligible() {
			out = append(out, c)
		}
	}
	return out
}

func mapRepositoryError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("case not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return apperr.Wrap(apperr.KindConflict, "case was modified concurrently, retry the request", err)
	default:
		return fmt.Errorf("case repository: %w", err)
	}
}

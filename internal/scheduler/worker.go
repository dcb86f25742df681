package scheduler

import (
	"context"
	"fmt"

	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/platform/apperr"
	"lexmatch_backend/platform/config"
	"lexmatch_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// CaseProcessor runs the background passes of one case.
type CaseProcessor interface {
	Analyze(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error)
	Match(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	cases  CaseProcessor
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, cases CaseProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		cases:  cases,
		log:    log,
	}

	mux.HandleFunc(TaskAnalyzeCase, w.handleAnalyzeCase)
	mux.HandleFunc(TaskMatchCase, w.handleMatchCase)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAnalyzeCase(ctx context.Context, task *asynq.Task) error {
	return w.process(ctx, task, "analysis", w.cases.Analyze)
}

func (w *Worker) handleMatchCase(ctx context.Context, task *asynq.Task) error {
	return w.process(ctx, task, "matching", w.cases.Match)
}

// process runs one pass. Cases that moved on are acknowledged, permanent
// failures skip retry and anything else is retried by asynq.
func (w *Worker) process(ctx context.Context, task *asynq.Task, pass string, run func(context.Context, uuid.UUID, *uuid.UUID) (domain.CaseRecord, error)) error {
	payload, err := ParseCasePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	caseID, err := uuid.Parse(payload.CaseID)
	if err != nil {
		return fmt.Errorf("invalid case id %q: %w", payload.CaseID, asynq.SkipRetry)
	}

	rec, err := run(ctx, caseID, nil)
	if err == nil {
		w.log.Info("case "+pass+" completed", "caseId", caseID, "status", rec.Status)
		return nil
	}

	switch apperr.GetKind(err) {
	case apperr.KindConflict:
		// Withdrawn or already past this pass.
		w.log.Info("case "+pass+" skipped", "caseId", caseID, "reason", err.Error())
		return nil
	case apperr.KindNotFound, apperr.KindValidation:
		return fmt.Errorf("case %s %s: %v: %w", pass, caseID, err, asynq.SkipRetry)
	default:
		return fmt.Errorf("case %s %s: %w", pass, caseID, err)
	}
}

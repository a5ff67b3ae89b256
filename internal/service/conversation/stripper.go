package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"reverie/internal/domain/repositories"
	"reverie/internal/llm"
	"reverie/internal/service/settings"
)

const (
	stripQueueSize  = 256
	stripJobTimeout = 2 * time.Minute
)

const stripSystem = "You compress one exchange of a roleplay chat into a terse third-person log entry. " +
	"Keep every concrete fact, event, decision, and emotional beat. Drop prose styling and filler. " +
	"Reply with the log text only."

// StripJob asks the worker to strip one turn, optionally on a specific model.
type StripJob struct {
	TurnID int64
	Model  string
}

// Stripper rewrites finished turns into terse log entries in the background.
// Jobs flow through a bounded in-process queue into a single worker so
// stripping never competes with live turns for provider throughput.
type Stripper struct {
	turns     repositories.TurnRepository
	settings  *settings.Service
	technical *llm.TechnicalCaller
	logger    *slog.Logger

	jobs chan StripJob
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewStripper creates a stripper with the standard queue capacity
func NewStripper(
	turns repositories.TurnRepository,
	settings *settings.Service,
	technical *llm.TechnicalCaller,
	logger *slog.Logger,
) *Stripper {
	return &Stripper{
		turns:     turns,
		settings:  settings,
		technical: technical,
		logger:    logger,
		jobs:      make(chan StripJob, stripQueueSize),
		done:      make(chan struct{}),
	}
}

// Start launches the worker goroutine. ctx bounds the worker's lifetime;
// once it is cancelled remaining jobs are dropped.
func (s *Stripper) Start(ctx context.Context) {
	go s.work(ctx)
}

// Stop closes the queue and waits for the worker to drain it.
func (s *Stripper) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	<-s.done
}

// Enqueue offers a strip job without blocking. A full or closed queue drops
// the job with a warning; a Restrip can recover it later.
func (s *Stripper) Enqueue(turnID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("strip queue closed, dropping job", "turn_id", turnID)
		return
	}

	select {
	case s.jobs <- StripJob{TurnID: turnID}:
	default:
		s.logger.Warn("strip queue full, dropping job", "turn_id", turnID)
	}
}

func (s *Stripper) work(ctx context.Context) {
	defer close(s.done)

	for job := range s.jobs {
		if ctx.Err() != nil {
			s.logger.Warn("strip worker stopping, dropping job", "turn_id", job.TurnID)
			continue
		}

		jobCtx, cancel := context.WithTimeout(ctx, stripJobTimeout)
		if err := s.strip(jobCtx, job); err != nil {
			s.logger.Warn("strip failed", "turn_id", job.TurnID, "error", err)
		}
		cancel()
	}
}

// Restrip clears the stored stripped text and re-runs the job synchronously.
func (s *Stripper) Restrip(ctx context.Context, turnID int64, model string) error {
	if err := s.turns.UpdateStripped(ctx, turnID, ""); err != nil {
		return err
	}
	return s.strip(ctx, StripJob{TurnID: turnID, Model: model})
}

// ClearAllStripped blanks the stripped text of every turn in the session.
func (s *Stripper) ClearAllStripped(ctx context.Context, sessionID int64) (int64, error) {
	return s.turns.ClearStrippedBySession(ctx, sessionID)
}

// strip runs one job: load the turn, rewrite the exchange on the technical
// model, store the result. An unsuccessful model verdict leaves the turn
// unstripped.
func (s *Stripper) strip(ctx context.Context, job StripJob) error {
	turn, err := s.turns.GetByID(ctx, job.TurnID)
	if err != nil {
		return err
	}
	if turn.Response == "" {
		s.logger.Debug("turn has no response, skipping strip", "turn_id", turn.ID)
		return nil
	}

	model := job.Model
	if model == "" {
		model = s.settings.String(ctx, settings.KeyTechnicalModel, settings.DefaultTechnicalModel)
	}

	response := turn.DisplayResponse
	if response == "" {
		response = turn.Response
	}
	prompt := fmt.Sprintf("User: %s\nAssistant: %s", turn.Input, response)

	out, err := s.technical.Generate(ctx, llm.TechnicalRequest{
		Operation: llm.OperationStrip,
		Model:     model,
		System:    stripSystem,
		Prompt:    prompt,
		MaxTokens: 1024,
		TurnID:    &turn.ID,
	})
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("technical call failed: %s", out.Text)
	}

	stripped := strings.TrimSpace(out.Text)
	if stripped == "" {
		return fmt.Errorf("model returned empty strip for turn %d", turn.ID)
	}

	return s.turns.UpdateStripped(ctx, turn.ID, stripped)
}

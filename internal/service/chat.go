package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/phantasma-ai/specky/internal/chatlog"
	"github.com/phantasma-ai/specky/internal/dialogue"
	"github.com/phantasma-ai/specky/internal/llm"
	"github.com/phantasma-ai/specky/internal/model"
	"github.com/phantasma-ai/specky/pkg/logger"
	"github.com/phantasma-ai/specky/pkg/metrics"
	"github.com/phantasma-ai/specky/pkg/tracing"
)

const (
	// TokenBudget bounds the estimated size of every completion request.
	TokenBudget = 4000
	// Temperature is the sampling temperature of every completion request.
	Temperature = 0.5
	// MaxTokens caps the length of a model reply.
	MaxTokens = 500
	// Choices is the number of replies requested per completion.
	Choices = 1
)

var fenceLanguages = strings.NewReplacer("```csharp", "```", "```tomb", "```")

// FormatAnswer collapses language-tagged fences the renderer does not need.
func FormatAnswer(answer string) string {
	return fenceLanguages.Replace(answer)
}

// EventPublisher receives session events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.TurnEvent) (uint64, error)
}

// ChatService handles user messages for every session.
type ChatService struct {
	store     *chatlog.Store
	llmClient llm.Client
	events    EventPublisher
	registry  *registry
	seed      string
	model     string
	logger    *logger.Logger
	tracer    trace.Tracer

	inflight sync.WaitGroup
}

// Option configures a ChatService.
type Option func(*ChatService)

// WithEvents publishes session events to p.
func WithEvents(p EventPublisher) Option {
	return func(s *ChatService) {
		s.events = p
	}
}

// WithModel selects the model requested from the provider.
func WithModel(model string) Option {
	return func(s *ChatService) {
		s.model = model
	}
}

// WithClock overrides the clock handed to dialogue machines.
func WithClock(clock func() time.Time) Option {
	return func(s *ChatService) {
		s.registry.opts = append(s.registry.opts, dialogue.WithClock(clock))
	}
}

// NewChatService creates a new chat service. seed is the assistant persona
// appended to every system prompt.
func NewChatService(
	store *chatlog.Store,
	llmClient llm.Client,
	seed string,
	log *logger.Logger,
	opts ...Option,
) *ChatService {
	s := &ChatService{
		store:     store,
		llmClient: llmClient,
		registry:  newRegistry(),
		seed:      seed,
		logger:    log,
		tracer:    tracing.Tracer("github.com/phantasma-ai/specky/internal/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// completionJob is an outbound request prepared for one session.
type completionJob struct {
	sessionID string
	messages  []llm.ChatMessage
	discarded int
}

// HandleUserMessage processes one user message to completion. It returns
// false without touching the session when a completion for the same session
// is already in flight.
func (s *ChatService) HandleUserMessage(ctx context.Context, sessionID, text string) (bool, error) {
	if !s.acquire(sessionID) {
		return false, nil
	}
	defer s.release(sessionID)

	job, err := s.begin(ctx, sessionID, text)
	if err != nil {
		return false, err
	}
	if job != nil {
		s.complete(ctx, job)
	}
	return true, nil
}

// Submit stores the user message and any canned reply before returning and
// dispatches the completion, when one is needed, in the background. The
// session stays pending until the completion finishes.
func (s *ChatService) Submit(ctx context.Context, sessionID, text string) (bool, error) {
	if !s.acquire(sessionID) {
		return false, nil
	}

	job, err := s.begin(ctx, sessionID, text)
	if err != nil || job == nil {
		s.release(sessionID)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.release(sessionID)
		s.complete(context.WithoutCancel(ctx), job)
	}()

	return true, nil
}

// Wait blocks until every dispatched completion has finished or ctx ends.
func (s *ChatService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChatService) acquire(sessionID string) bool {
	if !s.registry.acquire(sessionID) {
		metrics.DuplicateRequestsTotal.Inc()
		s.logger.Info("request ignored, completion in flight", zap.String("session_id", sessionID))
		return false
	}
	metrics.PendingSessions.Inc()
	return true
}

func (s *ChatService) release(sessionID string) {
	s.registry.release(sessionID)
	metrics.PendingSessions.Dec()
}

// begin records the user turn and either answers it from the guided
// dialogue or prepares a completion job.
func (s *ChatService) begin(ctx context.Context, sessionID, text string) (*completionJob, error) {
	conv, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	machine := s.registry.machine(sessionID, conv.Turns)
	state := machine.State()
	next, out := machine.Next(text)

	turns := []model.Turn{model.UserTurn(out.Answer)}
	if out.Canned {
		turns = append(turns, model.AssistantTurn(out.Reply))
	}
	if err := s.appendTurns(ctx, sessionID, turns...); err != nil {
		return nil, err
	}
	machine.Commit(next)

	if out.Canned {
		metrics.CannedRepliesTotal.WithLabelValues(state.String()).Inc()
		return nil, nil
	}

	conv, err = s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload conversation: %w", err)
	}

	messages := make([]llm.ChatMessage, 0, len(conv.Turns)+1)
	messages = append(messages, llm.ChatMessage{
		Role:    string(model.RoleSystem),
		Content: machine.Rules() + s.seed,
	})
	for _, t := range conv.Turns {
		messages = append(messages, llm.ChatMessage{
			Role:    string(model.RoleOf(t)),
			Content: t.Text,
		})
	}

	messages, discarded := llm.TrimToBudget(messages, TokenBudget)
	if discarded > 0 {
		metrics.ContextCharsDiscarded.Add(float64(discarded))
		s.logger.Info("context pruned",
			zap.String("session_id", sessionID),
			zap.Int("chars_discarded", discarded),
		)
		s.publish(ctx, &model.TurnEvent{
			SessionID: sessionID,
			Type:      model.EventTypeContextPruned,
			Metadata:  map[string]any{"chars_discarded": discarded},
		})
	}

	return &completionJob{sessionID: sessionID, messages: messages, discarded: discarded}, nil
}

// complete calls the provider and stores its answers. Failures are logged
// and leave the conversation without a reply.
func (s *ChatService) complete(ctx context.Context, job *completionJob) {
	log := s.logger.WithSession(job.sessionID)

	ctx, span := s.tracer.Start(ctx, "chat.completion", trace.WithAttributes(
		attribute.String("session.id", job.sessionID),
		attribute.String("llm.provider", s.llmClient.Name()),
		attribute.Int("llm.messages", len(job.messages)),
		attribute.Int("llm.chars_discarded", job.discarded),
	))
	defer span.End()

	log.Info("sending completion request", zap.Int("messages", len(job.messages)))
	start := time.Now()

	resp, err := s.llmClient.Complete(ctx, &llm.CompletionRequest{
		Model:       s.model,
		Messages:    job.messages,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		N:           Choices,
	})
	if err == nil && len(resp.Choices) == 0 {
		err = llm.ErrNoChoices
	}
	if err != nil {
		metrics.RecordCompletion(s.llmClient.Name(), "", "error", time.Since(start).Seconds(), 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		fields := []zap.Field{zap.Error(err)}
		var perr *llm.ProviderError
		if errors.As(err, &perr) {
			fields = append(fields, zap.String("code", perr.Code), zap.String("provider_message", perr.Message))
		}
		log.Error("completion failed", fields...)

		s.publish(ctx, &model.TurnEvent{
			SessionID: job.sessionID,
			Type:      model.EventTypeCompletionFailed,
			Reason:    err.Error(),
		})
		return
	}

	metrics.RecordCompletion(s.llmClient.Name(), resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	answers := make([]model.Turn, len(resp.Choices))
	for i, choice := range resp.Choices {
		answers[i] = model.AssistantTurn(FormatAnswer(choice))
	}
	if err := s.appendTurns(ctx, job.sessionID, answers...); err != nil {
		span.RecordError(err)
		log.Error("failed to store completion", zap.Error(err))
		return
	}

	log.Info("completion stored",
		zap.Int("choices", len(answers)),
		zap.Int64("latency_ms", resp.LatencyMs),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
	)
}

func (s *ChatService) appendTurns(ctx context.Context, sessionID string, turns ...model.Turn) error {
	if err := s.store.Append(ctx, sessionID, turns...); err != nil {
		return fmt.Errorf("failed to append turns: %w", err)
	}
	for _, t := range turns {
		metrics.RecordTurn(t.Assistant)
		s.publish(ctx, &model.TurnEvent{
			SessionID: sessionID,
			Type:      model.EventTypeTurnAppended,
			Assistant: t.Assistant,
			Text:      t.Text,
		})
	}
	return nil
}

func (s *ChatService) publish(ctx context.Context, event *model.TurnEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = time.Now()

	if _, err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("session_id", event.SessionID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

// Conversation returns the session's conversation.
func (s *ChatService) Conversation(ctx context.Context, sessionID string) (*model.Conversation, error) {
	return s.store.Load(ctx, sessionID)
}

// IsPending reports whether a completion for the session is in flight.
func (s *ChatService) IsPending(sessionID string) bool {
	return s.registry.isPending(sessionID)
}

// Status returns the session's conversation along with its dialogue state
// and pending flag.
func (s *ChatService) Status(ctx context.Context, sessionID string) (*model.ChatStatus, error) {
	conv, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &model.ChatStatus{
		ID:      sessionID,
		State:   s.registry.state(sessionID, conv.Turns).String(),
		Pending: s.IsPending(sessionID),
		Turns:   conv.Turns,
	}, nil
}

// NewSessionID mints an id that has no conversation yet.
func (s *ChatService) NewSessionID() string {
	for {
		id := uuid.Must(uuid.NewV7()).String()
		if !s.store.Exists(id) {
			return id
		}
	}
}

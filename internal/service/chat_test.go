package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantasma-ai/specky/internal/chatlog"
	"github.com/phantasma-ai/specky/internal/dialogue"
	"github.com/phantasma-ai/specky/internal/llm"
	"github.com/phantasma-ai/specky/internal/model"
	"github.com/phantasma-ai/specky/pkg/logger"
)

const seed = "You are Specky, a friendly ghost.\n"

// fakeLLM records requests and answers with a fixed reply. When gate is
// set, each call blocks until the test sends on it.
type fakeLLM struct {
	mu       sync.Mutex
	requests []*llm.CompletionRequest
	reply    []string
	err      error
	entered  chan struct{}
	gate     chan struct{}
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Choices: f.reply, Model: "fake-model", TokensIn: 10, TokensOut: 5}, nil
}

func (f *fakeLLM) Name() string     { return "fake" }
func (f *fakeLLM) Models() []string { return []string{"fake-model"} }

func (f *fakeLLM) calls() []*llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*llm.CompletionRequest(nil), f.requests...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.TurnEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event *model.TurnEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return uint64(len(p.events)), nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T, client llm.Client, opts ...Option) (*ChatService, *chatlog.Store) {
	t.Helper()
	store, err := chatlog.NewStore(filepath.Join(t.TempDir(), "Chatlogs"), dialogue.OpeningMenu(), logger.NewNop())
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return time.Unix(0, 0) })}, opts...)
	return NewChatService(store, client, seed, logger.NewNop(), opts...), store
}

func TestHandleUserMessage_CannedReplySkipsModel(t *testing.T) {
	fake := &fakeLLM{reply: []string{"unused"}}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	accepted, err := svc.HandleUserMessage(ctx, "s1", "1")
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Empty(t, fake.calls())

	conv, err := svc.Conversation(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, conv.Turns, 3)
	assert.Equal(t, model.UserTurn("I Want To Build\n"), conv.Turns[1])
	assert.True(t, conv.Turns[2].Assistant)
	assert.True(t, strings.HasPrefix(conv.Turns[2].Text, "Sure, what specifically?"))
	assert.False(t, svc.IsPending("s1"))
}

func TestHandleUserMessage_InvalidSelection(t *testing.T) {
	fake := &fakeLLM{}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.HandleUserMessage(ctx, "s1", "99")
	require.NoError(t, err)

	status, err := svc.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "init", status.State)
	assert.Equal(t, dialogue.ErrorReply+"\n", status.Turns[2].Text)
	assert.Empty(t, fake.calls())
}

func TestHandleUserMessage_FreeFormCallsModel(t *testing.T) {
	fake := &fakeLLM{reply: []string{"Here:\n```csharp\nvar x = 1;\n```\n```tomb\ncontract {}\n```"}}
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, fake, WithEvents(pub), WithModel("gpt-test"))
	ctx := context.Background()

	// Customer support drops straight into free mode.
	_, err := svc.HandleUserMessage(ctx, "s1", "3")
	require.NoError(t, err)
	require.Empty(t, fake.calls())

	accepted, err := svc.HandleUserMessage(ctx, "s1", "My wallet is stuck")
	require.NoError(t, err)
	assert.True(t, accepted)

	calls := fake.calls()
	require.Len(t, calls, 1)
	req := calls[0]
	assert.Equal(t, "gpt-test", req.Model)
	assert.Equal(t, MaxTokens, req.MaxTokens)
	assert.InDelta(t, Temperature, req.Temperature, 1e-9)
	assert.Equal(t, Choices, req.N)

	first := req.Messages[0]
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, "system", first.Role)
	assert.True(t, strings.HasPrefix(first.Content, "You are an assistant that only provides customer support"))
	assert.True(t, strings.HasSuffix(first.Content, seed))
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "My wallet is stuck\n", last.Content)
	assert.Equal(t, "assistant", req.Messages[1].Role)

	conv, err := svc.Conversation(ctx, "s1")
	require.NoError(t, err)
	answer := conv.Turns[len(conv.Turns)-1]
	assert.True(t, answer.Assistant)
	assert.NotContains(t, answer.Text, "csharp")
	assert.NotContains(t, answer.Text, "tomb")
	assert.Contains(t, answer.Text, "```\nvar x = 1;")

	assert.Contains(t, pub.types(), model.EventTypeTurnAppended)
}

func TestHandleUserMessage_ProviderFailureKeepsUserTurn(t *testing.T) {
	fake := &fakeLLM{err: &llm.ProviderError{Provider: "fake", Code: "500", Message: "boom"}}
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, fake, WithEvents(pub))
	ctx := context.Background()

	_, err := svc.HandleUserMessage(ctx, "s1", "3")
	require.NoError(t, err)

	accepted, err := svc.HandleUserMessage(ctx, "s1", "help")
	require.NoError(t, err)
	assert.True(t, accepted)

	conv, err := svc.Conversation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.UserTurn("help\n"), conv.Turns[len(conv.Turns)-1])
	assert.False(t, svc.IsPending("s1"), "pending flag must clear after a failure")
	assert.Contains(t, pub.types(), model.EventTypeCompletionFailed)

	// A retry goes through.
	fake.err = nil
	fake.reply = []string{"fixed"}
	accepted, err = svc.HandleUserMessage(ctx, "s1", "help again")
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Len(t, fake.calls(), 2)
}

func TestHandleUserMessage_EmptyResultIsFailure(t *testing.T) {
	fake := &fakeLLM{reply: nil}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	_, _ = svc.HandleUserMessage(ctx, "s1", "3")
	before, err := svc.Conversation(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.HandleUserMessage(ctx, "s1", "anyone?")
	require.NoError(t, err)

	after, err := svc.Conversation(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, after.Turns, len(before.Turns)+1)
}

func TestHandleUserMessage_DuplicateInFlightIsDropped(t *testing.T) {
	fake := &fakeLLM{
		reply:   []string{"done"},
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.HandleUserMessage(ctx, "s1", "3")
	require.NoError(t, err)

	firstDone := make(chan bool)
	go func() {
		accepted, err := svc.HandleUserMessage(ctx, "s1", "first question")
		assert.NoError(t, err)
		firstDone <- accepted
	}()

	<-fake.entered
	assert.True(t, svc.IsPending("s1"))

	accepted, err := svc.HandleUserMessage(ctx, "s1", "second question")
	require.NoError(t, err)
	assert.False(t, accepted)

	// Other sessions are unaffected.
	accepted, err = svc.HandleUserMessage(ctx, "s2", "1")
	require.NoError(t, err)
	assert.True(t, accepted)

	close(fake.gate)
	assert.True(t, <-firstDone)

	assert.Len(t, fake.calls(), 1)
	conv, err := svc.Conversation(ctx, "s1")
	require.NoError(t, err)

	var userTexts []string
	for _, turn := range conv.Turns {
		if !turn.Assistant {
			userTexts = append(userTexts, turn.Text)
		}
	}
	assert.Equal(t, []string{"Customer Support\n", "first question\n"}, userTexts)
	assert.False(t, svc.IsPending("s1"))
}

func TestSubmit_DispatchesInBackground(t *testing.T) {
	fake := &fakeLLM{reply: []string{"async answer"}, gate: make(chan struct{})}
	svc, _ := newTestService(t, fake)
	ctx, cancel := context.WithCancel(context.Background())

	accepted, err := svc.Submit(ctx, "s1", "3")
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.False(t, svc.IsPending("s1"), "canned replies complete synchronously")

	accepted, err = svc.Submit(ctx, "s1", "question")
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, svc.IsPending("s1"))

	// Request cancellation does not abort the dispatched completion.
	cancel()

	accepted, err = svc.Submit(context.Background(), "s1", "again")
	require.NoError(t, err)
	assert.False(t, accepted)

	close(fake.gate)
	waitCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	require.NoError(t, svc.Wait(waitCtx))

	assert.False(t, svc.IsPending("s1"))
	conv, err := svc.Conversation(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, model.AssistantTurn("async answer\n"), conv.Turns[len(conv.Turns)-1])
}

func TestHandleUserMessage_StoreErrorIsReturned(t *testing.T) {
	svc, _ := newTestService(t, &fakeLLM{})

	accepted, err := svc.HandleUserMessage(context.Background(), "../escape", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatlog.ErrInvalidSessionID))
	assert.False(t, accepted)
	assert.False(t, svc.IsPending("../escape"))
}

func TestHandleUserMessage_TrimsLongHistory(t *testing.T) {
	fake := &fakeLLM{reply: []string{"ok"}}
	svc, store := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.HandleUserMessage(ctx, "s1", "3")
	require.NoError(t, err)
	big := strings.Repeat("lorem ipsum ", 1500)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, "s1", model.UserTurn(big), model.AssistantTurn(big)))
	}

	_, err = svc.HandleUserMessage(ctx, "s1", "short question")
	require.NoError(t, err)

	req := fake.calls()[0]
	assert.LessOrEqual(t, llm.EstimateTokens(req.Messages), TokenBudget)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "short question\n", req.Messages[len(req.Messages)-1].Content)
}

func TestRestartRestoresTopLevelBranch(t *testing.T) {
	fake := &fakeLLM{reply: []string{"ok"}}
	svc, store := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.HandleUserMessage(ctx, "s1", "2")
	require.NoError(t, err)

	// A new service over the same directory simulates a restart.
	dir := filepath.Dir(store.Path("s1"))
	restarted, err := chatlog.NewStore(dir, dialogue.OpeningMenu(), logger.NewNop())
	require.NoError(t, err)
	svc2 := NewChatService(restarted, fake, seed, logger.NewNop())

	status, err := svc2.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "community", status.State)

	// Community mode hands answers to the model.
	_, err = svc2.HandleUserMessage(ctx, "s1", "What is SOUL?")
	require.NoError(t, err)
	assert.Len(t, fake.calls(), 1)
}

func TestNewSessionID(t *testing.T) {
	svc, _ := newTestService(t, &fakeLLM{})

	a, b := svc.NewSessionID(), svc.NewSessionID()
	assert.NotEqual(t, a, b)
	assert.True(t, chatlog.ValidID(a))
}

func TestFormatAnswer(t *testing.T) {
	assert.Equal(t, "```\nx\n```", FormatAnswer("```csharp\nx\n```"))
	assert.Equal(t, "```\nx\n```", FormatAnswer("```tomb\nx\n```"))
	assert.Equal(t, "```go\nx\n```", FormatAnswer("```go\nx\n```"))
}

func TestHandleUserMessage_StoreFailureKeepsDialogueState(t *testing.T) {
	fake := &fakeLLM{}
	svc, store := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.HandleUserMessage(ctx, "s1", "1")
	require.NoError(t, err)

	// Swap the log for a directory so the next append fails.
	path := store.Path("s1")
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	accepted, err := svc.HandleUserMessage(ctx, "s1", "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatlog.ErrStoreUnavailable))
	assert.False(t, accepted)

	status, err := svc.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "dev", status.State)
	assert.Len(t, status.Turns, 3)
	assert.False(t, status.Pending)

	// Once the log is writable again the same answer picks the same branch.
	require.NoError(t, os.Remove(path))
	_, err = svc.HandleUserMessage(ctx, "s1", "1")
	require.NoError(t, err)

	status, err = svc.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "game_engines", status.State)
}

func TestHandleUserMessage_UnguidedDevTopicStaysInMenu(t *testing.T) {
	fake := &fakeLLM{reply: []string{"Let's talk DeFi."}}
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.HandleUserMessage(ctx, "s1", "1")
	require.NoError(t, err)
	_, err = svc.HandleUserMessage(ctx, "s1", "2")
	require.NoError(t, err)

	assert.Len(t, fake.calls(), 1)
	status, err := svc.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "dev", status.State)
}

func TestStatus_UnknownSessionRegistersNothing(t *testing.T) {
	svc, _ := newTestService(t, &fakeLLM{})

	status, err := svc.Status(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, "init", status.State)
	assert.Len(t, status.Turns, 1)
	assert.Empty(t, svc.registry.machines)
}

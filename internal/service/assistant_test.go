package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintrastudio/chat-platform/internal/events"
	"github.com/vintrastudio/chat-platform/internal/llm"
	"github.com/vintrastudio/chat-platform/internal/model"
	"github.com/vintrastudio/chat-platform/internal/quota"
	"github.com/vintrastudio/chat-platform/internal/store"
	"github.com/vintrastudio/chat-platform/pkg/logger"
)

type stubCompleter struct {
	calls    int
	lastReq  *llm.CompletionRequest
	response *llm.CompletionResponse
	err      error
}

func (c *stubCompleter) Complete(ctx context.Context, preferred string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.calls++
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

type assistantEnv struct {
	store     *store.Memory
	sessions  *SessionService
	assistant *AssistantService
	completer *stubCompleter
	clock     time.Time
}

func newAssistantEnv(t *testing.T, planID string) *assistantEnv {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, st.PutOwnerProfile(ctx, &model.OwnerProfile{
		ID:                   testOwner,
		Plan:                 planID,
		ConversationsResetAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, st.PutWidgetConfig(ctx, &model.WidgetConfig{
		ID:               testWidget,
		OwnerID:          testOwner,
		AssistantEnabled: true,
		Model:            "gpt-4o-mini",
	}))

	env := &assistantEnv{
		store: st,
		completer: &stubCompleter{response: &llm.CompletionResponse{
			Content:   "Here is my answer.",
			Model:     "gpt-4o-mini",
			TokensIn:  120,
			TokensOut: 40,
		}},
		clock: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	env.sessions = NewSessionService(st, quota.NewTracker(st), events.Noop{}, logger.NewNop())
	env.sessions.now = func() time.Time { return env.clock }
	env.assistant = NewAssistantService(st, env.completer, events.Noop{}, logger.NewNop(), 0)
	env.assistant.now = func() time.Time { return env.clock }
	return env
}

func (e *assistantEnv) startConversation(t *testing.T) string {
	t.Helper()
	resp, err := e.sessions.Create(context.Background(), &model.CreateSessionRequest{
		WidgetID:    testWidget,
		VisitorName: "Ada",
	}, VisitorMeta{})
	require.NoError(t, err)
	return resp.SessionID
}

func (e *assistantEnv) postVisitor(t *testing.T, sessionID, body string) {
	t.Helper()
	e.clock = e.clock.Add(time.Second)
	_, err := e.sessions.PostMessage(context.Background(), &model.PostMessageRequest{
		SessionID: sessionID,
		Body:      body,
	})
	require.NoError(t, err)
}

func (e *assistantEnv) transcript(t *testing.T, sessionID string) []model.Message {
	t.Helper()
	msgs, err := e.store.ListMessagesAfter(context.Background(), sessionID, time.Time{}, 0)
	require.NoError(t, err)
	return msgs
}

func TestGenerateReplyStoresBotMessage(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)
	env.postVisitor(t, id, "what are your prices?")

	resp, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "what are your prices?"})
	require.NoError(t, err)
	assert.Equal(t, "Here is my answer.", resp.Reply)
	assert.True(t, resp.BotActive)
	assert.False(t, resp.Handoff)

	msgs := env.transcript(t, id)
	require.Len(t, msgs, 2)
	bot := msgs[1]
	assert.Equal(t, model.SenderBot, bot.Sender)
	assert.True(t, bot.IsAIGenerated)
	assert.Equal(t, "gpt-4o-mini", bot.Metadata["model"])
	assert.Equal(t, 160, bot.Metadata["tokens_used"])

	sess, err := env.store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.BotMessageCount)
}

func TestGenerateReplyBotInactiveIsNotAnError(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)
	require.NoError(t, env.sessions.Takeover(ctx, testOwner, id))

	resp, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "hi"})
	require.NoError(t, err)
	assert.False(t, resp.BotActive)
	assert.Zero(t, env.completer.calls)
}

func TestGenerateReplyClosedSession(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)
	require.NoError(t, env.sessions.Archive(ctx, testOwner, id))

	resp, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "hi"})
	require.NoError(t, err)
	assert.False(t, resp.BotActive)
	assert.Zero(t, env.completer.calls)
}

func TestGenerateReplyUnknownSession(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	_, err := env.assistant.GenerateReply(context.Background(), &model.GenerateReplyRequest{SessionID: "nope", Body: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandoffKeywordShortCircuits(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)
	env.postVisitor(t, id, "I want to talk to a human")

	resp, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "I want to talk to a human"})
	require.NoError(t, err)
	assert.True(t, resp.Handoff)
	assert.NotEmpty(t, resp.Reply)
	assert.Zero(t, env.completer.calls, "no completion call on handoff")

	sess, err := env.store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingForHuman, sess.Status)
	assert.False(t, sess.IsBotActive)
	require.NotNil(t, sess.HandoffAt)

	// Exactly one stored handoff notice.
	notices := 0
	for _, msg := range env.transcript(t, id) {
		if msg.Metadata["type"] == "handoff" {
			notices++
		}
	}
	assert.Equal(t, 1, notices)
}

func TestHandoffCustomKeywordsReplaceDefaults(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()

	cfg, err := env.store.GetWidgetConfig(ctx, testWidget)
	require.NoError(t, err)
	cfg.HandoffKeywords = []string{"operator"}
	require.NoError(t, env.store.PutWidgetConfig(ctx, cfg))

	id := env.startConversation(t)
	env.postVisitor(t, id, "I want a human")

	resp, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "I want a human"})
	require.NoError(t, err)
	assert.False(t, resp.Handoff)
	assert.Equal(t, 1, env.completer.calls)
}

func TestGenerateReplyAfterHandoffStaysQuiet(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)

	_, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "agent please"})
	require.NoError(t, err)

	// The session is waiting for a human now; further turns are inert.
	resp, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "hello?"})
	require.NoError(t, err)
	assert.False(t, resp.BotActive)
	assert.False(t, resp.Handoff)
	assert.Zero(t, env.completer.calls)
}

// failingInsertStore errors on every message insert while delegating the
// rest to the wrapped store.
type failingInsertStore struct {
	store.Store
}

func (f *failingInsertStore) InsertMessage(ctx context.Context, m *model.Message) error {
	return errors.New("disk full")
}

func TestHandoffNoticeFailureLeavesSessionUntouched(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)

	assistant := NewAssistantService(&failingInsertStore{Store: env.store}, env.completer, events.Noop{}, logger.NewNop(), 0)
	assistant.now = func() time.Time { return env.clock }

	_, err := assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "agent please"})
	require.Error(t, err)

	// The stored session never entered waiting_for_human: no state change
	// without a visible notice to explain it.
	sess, err := env.store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, sess.BotOwned())
	assert.Empty(t, env.transcript(t, id))
}

func TestGenerateReplyPlanWithoutAssistant(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)

	// Downgrade after the session started bot-active.
	profile, err := env.store.GetOwnerProfile(ctx, testOwner)
	require.NoError(t, err)
	profile.Plan = "starter"
	require.NoError(t, env.store.PutOwnerProfile(ctx, profile))

	resp, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "hi"})
	require.NoError(t, err)
	assert.False(t, resp.BotActive)
	assert.Zero(t, env.completer.calls)
}

func TestGenerateReplyCompletionFailureLeavesVisitorMessage(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)
	env.postVisitor(t, id, "what are your prices?")

	env.completer.err = &llm.Error{Kind: llm.KindRateLimited, Model: "openai/gpt-4o-mini", Err: errors.New("429")}
	_, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "what are your prices?"})
	require.Error(t, err)
	assert.Equal(t, llm.KindRateLimited, llm.KindOf(err))

	// The visitor's message survives; no bot message was written.
	msgs := env.transcript(t, id)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderVisitor, msgs[0].Sender)
}

func TestTranscriptWindowAndFolding(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)

	for i := 0; i < 25; i++ {
		env.postVisitor(t, id, fmt.Sprintf("message %d", i))
	}

	// The current message equals the stored trailing one, so it is folded
	// instead of appearing twice.
	_, err := env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "message 24"})
	require.NoError(t, err)

	req := env.completer.lastReq
	require.NotNil(t, req)
	assert.Len(t, req.Messages, 20)
	assert.Equal(t, llm.RoleUser, req.Messages[len(req.Messages)-1].Role)
	assert.Equal(t, "message 24", req.Messages[len(req.Messages)-1].Content)
	// Oldest entries fell out of the window.
	assert.Equal(t, "message 5", req.Messages[0].Content)
}

func TestTranscriptRoleMapping(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()
	id := env.startConversation(t)

	env.postVisitor(t, id, "hello")
	env.clock = env.clock.Add(time.Second)
	_, err := env.sessions.AdminReply(ctx, testOwner, id, "hi, I can help")
	require.NoError(t, err)
	require.NoError(t, env.sessions.ReactivateBot(ctx, testOwner, id))

	_, err = env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "great, thanks"})
	require.NoError(t, err)

	req := env.completer.lastReq
	require.NotNil(t, req)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, llm.RoleUser, req.Messages[2].Role)
}

func TestSystemPromptComposition(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()

	cfg, err := env.store.GetWidgetConfig(ctx, testWidget)
	require.NoError(t, err)
	cfg.SystemPrompt = "You are the support assistant for Acme."
	cfg.KnowledgeBase = "Our refund window is 30 days."
	require.NoError(t, env.store.PutWidgetConfig(ctx, cfg))
	require.NoError(t, env.store.PutCannedResponse(ctx, &model.CannedResponse{
		ID: "c1", WidgetID: testWidget, Title: "Refunds", Content: "Refunds take 5-7 days.",
	}))

	id := env.startConversation(t)
	_, err = env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "refund?"})
	require.NoError(t, err)

	system := env.completer.lastReq.System
	assert.True(t, strings.HasPrefix(system, "You are the support assistant for Acme."))
	assert.Contains(t, system, "Our refund window is 30 days.")
	assert.Contains(t, system, "Refunds take 5-7 days.")
	assert.Contains(t, system, `"Ada"`)
	assert.Contains(t, system, "2025-06-15T12:00:00Z")
}

func TestDefaultPromptAndClamps(t *testing.T) {
	env := newAssistantEnv(t, "pro")
	ctx := context.Background()

	cfg, err := env.store.GetWidgetConfig(ctx, testWidget)
	require.NoError(t, err)
	cfg.Temperature = 7.5
	cfg.MaxTokens = 999999
	require.NoError(t, env.store.PutWidgetConfig(ctx, cfg))

	id := env.startConversation(t)
	_, err = env.assistant.GenerateReply(ctx, &model.GenerateReplyRequest{SessionID: id, Body: "hi"})
	require.NoError(t, err)

	req := env.completer.lastReq
	assert.True(t, strings.HasPrefix(req.System, defaultSystemPrompt))
	assert.Equal(t, 2.0, req.Temperature)
	assert.Equal(t, maxTokensCeiling, req.MaxTokens)
}

func TestClampDefaults(t *testing.T) {
	assert.Equal(t, defaultTemperature, clampTemperature(0))
	assert.Equal(t, 0.0, clampTemperature(-1))
	assert.Equal(t, 1.3, clampTemperature(1.3))
	assert.Equal(t, defaultMaxTokens, clampMaxTokens(0))
	assert.Equal(t, 1000, clampMaxTokens(1000))
}

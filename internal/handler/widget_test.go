package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintrastudio/chat-platform/internal/events"
	"github.com/vintrastudio/chat-platform/internal/llm"
	"github.com/vintrastudio/chat-platform/internal/model"
	"github.com/vintrastudio/chat-platform/internal/quota"
	"github.com/vintrastudio/chat-platform/internal/service"
	"github.com/vintrastudio/chat-platform/internal/store"
	"github.com/vintrastudio/chat-platform/pkg/logger"
)

const (
	widgetID = "7f9c24e5-1a2b-4c3d-8e4f-5a6b7c8d9e0f"
	ownerID  = "0e1d2c3b-4a5f-6e7d-8c9b-0a1f2e3d4c5b"
)

type fakeCompleter struct {
	err error
}

func (f *fakeCompleter) Complete(ctx context.Context, preferred string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: "stub reply", Model: "gpt-4o-mini"}, nil
}

type testAPI struct {
	store     *store.Memory
	handler   *WidgetHandler
	completer *fakeCompleter
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, st.PutOwnerProfile(ctx, &model.OwnerProfile{
		ID:                   ownerID,
		Plan:                 "pro",
		ConversationsResetAt: time.Now().UTC(),
	}))
	require.NoError(t, st.PutWidgetConfig(ctx, &model.WidgetConfig{
		ID:               widgetID,
		OwnerID:          ownerID,
		Title:            "Support",
		AssistantEnabled: true,
	}))

	log := logger.NewNop()
	sessions := service.NewSessionService(st, quota.NewTracker(st), events.Noop{}, log)
	completer := &fakeCompleter{}
	assistant := service.NewAssistantService(st, completer, events.Noop{}, log, 0)

	return &testAPI{
		store:     st,
		handler:   NewWidgetHandler(sessions, assistant, log),
		completer: completer,
	}
}

func (a *testAPI) createSession(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/session",
		strings.NewReader(`{"widget_id":"`+widgetID+`","visitor_name":"Ada"}`))
	a.handler.CreateSession(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp model.CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.SessionID
}

func TestCreateSessionEndpoint(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/session",
		strings.NewReader(`{"widget_id":"`+widgetID+`","visitor_name":"Ada"}`))
	api.handler.CreateSession(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp model.CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.True(t, resp.BotActive)
}

func TestCreateSessionRejectsMalformedWidgetID(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/session",
		strings.NewReader(`{"widget_id":"not-a-uuid"}`))
	api.handler.CreateSession(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSessionUnknownWidget(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/session",
		strings.NewReader(`{"widget_id":"11111111-2222-3333-4444-555555555555"}`))
	api.handler.CreateSession(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSessionQuotaExceeded(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	profile, err := api.store.GetOwnerProfile(ctx, ownerID)
	require.NoError(t, err)
	profile.ConversationsThisMonth = 2000
	require.NoError(t, api.store.PutOwnerProfile(ctx, profile))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/session",
		strings.NewReader(`{"widget_id":"`+widgetID+`"}`))
	api.handler.CreateSession(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostMessageAndPollRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	sessionID := api.createSession(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/message",
		strings.NewReader(`{"session_id":"`+sessionID+`","content":"hello"}`))
	api.handler.PostMessage(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var posted model.PostMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posted))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/widget/messages?session_id="+sessionID, nil)
	api.handler.ListMessages(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Messages []model.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Messages, 1)
	assert.Equal(t, "hello", listed.Messages[0].Body)

	// Polling with the returned id as cursor yields nothing new.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet,
		"/api/widget/messages?session_id="+sessionID+"&after="+posted.MessageID, nil)
	api.handler.ListMessages(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Messages)
}

func TestPostMessageEmptyContent(t *testing.T) {
	api := newTestAPI(t)
	sessionID := api.createSession(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/message",
		strings.NewReader(`{"session_id":"`+sessionID+`","content":""}`))
	api.handler.PostMessage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateReplySuccess(t *testing.T) {
	api := newTestAPI(t)
	sessionID := api.createSession(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/ai",
		strings.NewReader(`{"session_id":"`+sessionID+`","content":"what are your prices?"}`))
	api.handler.GenerateReply(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.GenerateReplyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "stub reply", resp.Reply)
	assert.True(t, resp.BotActive)
}

func TestGenerateReplyErrorMapping(t *testing.T) {
	tests := []struct {
		kind llm.Kind
		want int
	}{
		{llm.KindRateLimited, http.StatusTooManyRequests},
		{llm.KindConfig, http.StatusBadGateway},
		{llm.KindTransient, http.StatusBadGateway},
	}

	for _, tt := range tests {
		api := newTestAPI(t)
		sessionID := api.createSession(t)
		api.completer.err = &llm.Error{Kind: tt.kind, Model: "openai/gpt-4o-mini", Err: assert.AnError}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/widget/ai",
			strings.NewReader(`{"session_id":"`+sessionID+`","content":"hello"}`))
		api.handler.GenerateReply(rec, req)
		assert.Equal(t, tt.want, rec.Code, tt.kind.String())

		// Provider internals never reach the visitor.
		assert.NotContains(t, rec.Body.String(), "gpt-4o-mini")
	}
}

func TestConfigEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/widget/config?widget_id="+widgetID, nil)
	api.handler.Config(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg model.DisplayConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "Support", cfg.Title)
	assert.True(t, cfg.Online, "no configured hours means online")
}

func TestConfigUnknownWidget(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/widget/config?widget_id=11111111-2222-3333-4444-555555555555", nil)
	api.handler.Config(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/presentation/middleware"
)

const (
	custID = "11111111-1111-1111-1111-111111111111"
	vendID = "22222222-2222-2222-2222-222222222222"
	cID    = "33333333-3333-3333-3333-333333333333"
)

type memRepo struct {
	mu      sync.Mutex
	conv    *messaging.Conversation
	history []messaging.Message
	seq     int
}

func newMemRepo() *memRepo {
	return &memRepo{conv: &messaging.Conversation{
		ID:        cID,
		Customer:  messaging.Profile{UserID: custID, Name: "Casey Customer", Email: "casey@example.com"},
		Vendor:    messaging.Profile{UserID: vendID, Name: "Vic Vendor", Email: "vic@example.com"},
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}}
}

func (r *memRepo) GetConversation(ctx context.Context, id string) (*messaging.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conv == nil || r.conv.ID != id {
		return nil, messaging.ErrNotFound
	}
	c := *r.conv
	return &c, nil
}

func (r *memRepo) ListMessages(ctx context.Context, conversationID string) ([]messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]messaging.Message, len(r.history))
	copy(cp, r.history)
	return cp, nil
}

func (r *memRepo) SaveMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.ID = "stored-1"
	m.CreatedAt = time.Now().UTC()
	r.history = append(r.history, m)
	return m, nil
}

func (r *memRepo) MarkMessagesRead(ctx context.Context, conversationID string, ids []string) error {
	return nil
}

func (r *memRepo) TouchConversation(ctx context.Context, id string, at time.Time) error {
	return nil
}

func newTestRouter(repo *memRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1", middleware.Identity())
	g.GET("/conversations/:conversationId", NewGetConversationController(repo, nil).Handle())
	g.GET("/conversations/:conversationId/messages", NewGetMessageController(repo, nil).Handle())
	g.POST("/conversations/:conversationId/messages", NewSendMessageController(repo, nil, nil).Handle())
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, viewer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if viewer != "" {
		req.Header.Set("X-User-ID", viewer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetConversationReturnsOtherParty(t *testing.T) {
	r := newTestRouter(newMemRepo())

	w := doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+cID, custID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ID         string            `json:"id"`
		OtherParty messaging.Profile `json:"other_party"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cID, resp.ID)
	assert.Equal(t, "Vic Vendor", resp.OtherParty.Name)

	// The vendor sees the customer on the other side.
	w = doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+cID, vendID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Casey Customer", resp.OtherParty.Name)
}

func TestGetConversationHidesExistenceFromOutsiders(t *testing.T) {
	r := newTestRouter(newMemRepo())

	// Unknown id and non-participant get the same 404.
	w := doJSON(t, r, http.MethodGet, "/api/v1/conversations/99999999-9999-9999-9999-999999999999", custID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+cID, "55555555-5555-5555-5555-555555555555", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIdentityRequired(t *testing.T) {
	r := newTestRouter(newMemRepo())

	w := doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+cID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The websocket handshake path: identity via query parameter.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+cID+"?user_id="+custID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetMessagesOrderedWithCount(t *testing.T) {
	repo := newMemRepo()
	at := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	repo.history = []messaging.Message{
		{ID: "m1", ConversationID: cID, SenderID: vendID, Body: "hi", MsgType: messaging.MessageTypeText, CreatedAt: at},
		{ID: "m2", ConversationID: cID, SenderID: custID, Body: "hello", MsgType: messaging.MessageTypeText, CreatedAt: at.Add(time.Minute)},
	}
	r := newTestRouter(repo)

	w := doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+cID+"/messages", custID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []messaging.Message `json:"messages"`
		Count    int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	assert.Equal(t, "m2", resp.Messages[1].ID)
}

func TestGetMessagesEmptyHistoryIsAnArray(t *testing.T) {
	r := newTestRouter(newMemRepo())

	w := doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+cID+"/messages", custID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"messages":[]`)
}

func TestGetMessagesNonParticipantGets404(t *testing.T) {
	r := newTestRouter(newMemRepo())

	w := doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+cID+"/messages", "55555555-5555-5555-5555-555555555555", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessageCreates(t *testing.T) {
	repo := newMemRepo()
	r := newTestRouter(repo)

	w := doJSON(t, r, http.MethodPost, "/api/v1/conversations/"+cID+"/messages", custID, gin.H{"body": "  hello vendor  "})
	require.Equal(t, http.StatusCreated, w.Code)

	var m messaging.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "stored-1", m.ID)
	assert.Equal(t, custID, m.SenderID)
	assert.Equal(t, "hello vendor", m.Body)
	assert.False(t, m.IsRead)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.history, 1)
}

func TestSendMessageRejectsBadInput(t *testing.T) {
	repo := newMemRepo()
	r := newTestRouter(repo)

	// Missing body fails binding.
	w := doJSON(t, r, http.MethodPost, "/api/v1/conversations/"+cID+"/messages", custID, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Whitespace-only body fails domain validation.
	w = doJSON(t, r, http.MethodPost, "/api/v1/conversations/"+cID+"/messages", custID, gin.H{"body": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Empty(t, repo.history)
}

func TestSendMessageAuthorisation(t *testing.T) {
	r := newTestRouter(newMemRepo())

	w := doJSON(t, r, http.MethodPost, "/api/v1/conversations/"+cID+"/messages", "55555555-5555-5555-5555-555555555555", gin.H{"body": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/conversations/99999999-9999-9999-9999-999999999999/messages", custID, gin.H{"body": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

package dms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campuslink/campuslink-backend/internal/live"
	"github.com/campuslink/campuslink-backend/internal/middleware"
	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage"
	"github.com/campuslink/campuslink-backend/internal/storage/memory"
	"github.com/campuslink/campuslink-backend/internal/ws"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
)

const testSecret = "test-secret"

type testEnv struct {
	server   *httptest.Server
	store    *memory.MessageStore
	profiles *memory.ProfileStore
	broker   *live.Broker
}

func newTestEnv(t *testing.T, userIDs ...string) *testEnv {
	t.Helper()

	broker := live.NewBroker()
	store := memory.NewMessageStore(broker)
	profiles := memory.NewProfileStore()
	for _, id := range userIDs {
		profiles.Put(&models.Profile{ID: id, Name: "User " + id})
	}

	hub := ws.NewHub(broker)
	go hub.Run()

	handler := &Handler{Store: store, Profiles: profiles, Hub: hub}
	router := mux.NewRouter()
	RegisterDMRoutes(router, handler)

	server := httptest.NewServer(middleware.Auth(testSecret)(router))
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: store, profiles: profiles, broker: broker}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (e *testEnv) request(t *testing.T, userID, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token(t, userID))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSendAndListConversations(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")

	resp := env.request(t, "alice", http.MethodPost, "/api/v1/dms/send",
		map[string]string{"recipient_id": "bob", "content": "Hello"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, want 201", resp.StatusCode)
	}
	sent := decode[models.Message](t, resp)
	if sent.ID == "" || sent.SenderID != "alice" || sent.Read {
		t.Errorf("unexpected message record: %+v", sent)
	}

	resp = env.request(t, "bob", http.MethodGet, "/api/v1/dms/conversations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("conversations status = %d, want 200", resp.StatusCode)
	}
	summaries := decode[[]models.ConversationSummary](t, resp)
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	if summaries[0].Profile.ID != "alice" || summaries[0].UnreadCount != 1 {
		t.Errorf("unexpected summary: %+v", summaries[0])
	}
	if summaries[0].LastMessage.Content != "Hello" {
		t.Errorf("preview = %q, want Hello", summaries[0].LastMessage.Content)
	}
}

func TestSendValidationErrors(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"empty content", map[string]string{"recipient_id": "bob", "content": "  "}},
		{"self message", map[string]string{"recipient_id": "alice", "content": "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.request(t, "alice", http.MethodPost, "/api/v1/dms/send", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestThreadMarkReadRoundTrip(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")

	for _, text := range []string{"first", "second"} {
		resp := env.request(t, "alice", http.MethodPost, "/api/v1/dms/send",
			map[string]string{"recipient_id": "bob", "content": text})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("send status = %d", resp.StatusCode)
		}
	}

	resp := env.request(t, "bob", http.MethodGet, "/api/v1/dms/thread/alice?mark_read=1", nil)
	thread := decode[[]models.Message](t, resp)
	if len(thread) != 2 {
		t.Fatalf("thread = %d messages, want 2", len(thread))
	}
	if thread[0].Content != "first" || thread[1].Content != "second" {
		t.Errorf("thread not oldest-first: %q then %q", thread[0].Content, thread[1].Content)
	}
	for _, m := range thread {
		if !m.Read {
			t.Errorf("message %s not marked read in response", m.ID)
		}
	}

	resp = env.request(t, "bob", http.MethodGet, "/api/v1/dms/conversations", nil)
	summaries := decode[[]models.ConversationSummary](t, resp)
	if summaries[0].UnreadCount != 0 {
		t.Errorf("unread after open = %d, want 0", summaries[0].UnreadCount)
	}
}

func TestMarkReadIgnoresForeignIDs(t *testing.T) {
	env := newTestEnv(t, "alice", "bob", "carol")

	resp := env.request(t, "alice", http.MethodPost, "/api/v1/dms/send",
		map[string]string{"recipient_id": "bob", "content": "for bob"})
	forBob := decode[models.Message](t, resp)

	// Carol submits bob's message id; the batch succeeds but flips nothing.
	resp = env.request(t, "carol", http.MethodPost, "/api/v1/dms/read",
		map[string][]string{"message_ids": {forBob.ID}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read status = %d, want 200", resp.StatusCode)
	}

	resp = env.request(t, "bob", http.MethodGet, "/api/v1/dms/thread/alice", nil)
	thread := decode[[]models.Message](t, resp)
	if thread[0].Read {
		t.Error("foreign caller flipped another recipient's message")
	}
}

func TestStartThreadDeepLink(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")

	resp := env.request(t, "alice", http.MethodGet, "/api/v1/dms/start/bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}
	started := decode[struct {
		Profile  *models.Profile  `json:"profile"`
		Messages []models.Message `json:"messages"`
	}](t, resp)
	if started.Profile == nil || started.Profile.ID != "bob" {
		t.Errorf("profile = %+v, want bob", started.Profile)
	}
	if len(started.Messages) != 0 {
		t.Errorf("fresh thread has %d messages, want 0", len(started.Messages))
	}

	resp = env.request(t, "alice", http.MethodGet, "/api/v1/dms/start/nobody", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("start unknown user status = %d, want 404", resp.StatusCode)
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			"transport detail stays out of the body",
			fmt.Errorf("%w: mark read: pq: invalid input syntax for type uuid", storage.ErrTransport),
			http.StatusBadGateway,
			"Service temporarily unavailable",
		},
		{
			"validation",
			fmt.Errorf("%w: empty message content", storage.ErrValidation),
			http.StatusBadRequest,
			"Invalid request",
		},
		{
			"auth",
			fmt.Errorf("%w: cannot list another user's messages", storage.ErrAuth),
			http.StatusForbidden,
			"Not permitted",
		},
		{
			"unclassified",
			errors.New("sql: database is closed"),
			http.StatusInternalServerError,
			"Internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode[map[string]string](t, rec.Result())
			if body["error"] != tt.wantBody {
				t.Errorf("body error = %q, want %q", body["error"], tt.wantBody)
			}
			if strings.Contains(body["error"], "pq:") || strings.Contains(body["error"], "sql:") {
				t.Errorf("driver detail leaked to client: %q", body["error"])
			}
		})
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t, "alice")

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/dms/conversations", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", resp.StatusCode)
	}
}

package ourapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := OpenStore(StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "ourapi.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewServer(store, log.New(io.Discard, "", 0))
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateChatReturns201WithLocation(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodPost, "/chats",
		`{"external_id": "12345", "started_at": "2023-07-22T05:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	chat := decodeBody[Chat](t, rec)
	if chat.ExternalID != "12345" || chat.ChatID == "" {
		t.Fatalf("unexpected chat: %+v", chat)
	}
	if loc := rec.Header().Get("Location"); loc != "/chats/"+chat.ChatID {
		t.Fatalf("unexpected Location %q", loc)
	}
}

func TestCreateChatDuplicateExternalIDReturns409(t *testing.T) {
	server := newTestServer(t)
	body := `{"external_id": "12345", "started_at": "2023-07-22T05:00:00Z"}`
	if rec := doRequest(t, server, http.MethodPost, "/chats", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create failed: %d", rec.Code)
	}
	rec := doRequest(t, server, http.MethodPost, "/chats", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateChatMissingStartedAtReturns400(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodPost, "/chats", `{"external_id": "12345"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateChatUnknownAgentReturns400(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodPost, "/chats",
		`{"external_id": "12345", "started_at": "2023-07-22T05:00:00Z", "agent_id": "nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "agent does not exist") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestGetChatMissingReturns404(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodGet, "/chats/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListChatsFiltersOnExternalID(t *testing.T) {
	server := newTestServer(t)
	for _, body := range []string{
		`{"external_id": "1", "started_at": "2023-07-22T05:00:00Z"}`,
		`{"external_id": "2", "started_at": "2023-07-22T05:01:00Z"}`,
	} {
		if rec := doRequest(t, server, http.MethodPost, "/chats", body); rec.Code != http.StatusCreated {
			t.Fatalf("create failed: %d", rec.Code)
		}
	}
	rec := doRequest(t, server, http.MethodGet, "/chats?external_id=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	chats := decodeBody[[]Chat](t, rec)
	if len(chats) != 1 || chats[0].ExternalID != "2" {
		t.Fatalf("unexpected chats: %+v", chats)
	}
}

func TestPatchChatReturns204AndApplies(t *testing.T) {
	server := newTestServer(t)
	created := doRequest(t, server, http.MethodPost, "/chats",
		`{"external_id": "12345", "started_at": "2023-07-22T05:00:00Z"}`)
	chat := decodeBody[Chat](t, created)

	rec := doRequest(t, server, http.MethodPatch, "/chats/"+chat.ChatID,
		`{"ended_at": "2023-07-22T05:10:00Z"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	got := decodeBody[Chat](t, doRequest(t, server, http.MethodGet, "/chats/"+chat.ChatID, ""))
	if got.EndedAt == nil {
		t.Fatalf("ended_at not applied: %+v", got)
	}
}

func TestPatchChatMissingReturns404(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodPatch, "/chats/missing", `{"ended_at": "2023-07-22T05:10:00Z"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateMessageReturnsParentChat(t *testing.T) {
	server := newTestServer(t)
	created := doRequest(t, server, http.MethodPost, "/chats",
		`{"external_id": "12345", "started_at": "2023-07-22T05:00:00Z"}`)
	chat := decodeBody[Chat](t, created)

	rec := doRequest(t, server, http.MethodPost, "/chats/"+chat.ChatID+"/messages",
		`{"sent_at": "2023-07-22T05:02:00Z", "text": "My parcel never arrived."}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[Chat](t, rec)
	if got.ChatID != chat.ChatID {
		t.Fatalf("message create must answer with the parent chat, got %+v", got)
	}

	messages := decodeBody[[]Message](t, doRequest(t, server, http.MethodGet, "/chats/"+chat.ChatID+"/messages", ""))
	if len(messages) != 1 || messages[0].Text != "My parcel never arrived." {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestCreateMessageShortTextReturns400(t *testing.T) {
	server := newTestServer(t)
	created := doRequest(t, server, http.MethodPost, "/chats",
		`{"external_id": "12345", "started_at": "2023-07-22T05:00:00Z"}`)
	chat := decodeBody[Chat](t, created)

	rec := doRequest(t, server, http.MethodPost, "/chats/"+chat.ChatID+"/messages",
		`{"sent_at": "2023-07-22T05:02:00Z", "text": " x "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("trimmed text below the minimum must be rejected, got %d", rec.Code)
	}
}

func TestCreateMessageUnknownChatReturns404(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodPost, "/chats/missing/messages",
		`{"sent_at": "2023-07-22T05:02:00Z", "text": "hello there"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateAgentValidatesTrimmedLengths(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodPost, "/agents", `{"name": " A ", "email": "a@b.io"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("single-character trimmed name must be rejected, got %d", rec.Code)
	}
	rec = doRequest(t, server, http.MethodPost, "/agents",
		`{"name": "Oliver Smith", "email": "oliver_smith@company.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	agent := decodeBody[Agent](t, rec)
	if loc := rec.Header().Get("Location"); loc != "/agents/"+agent.AgentID {
		t.Fatalf("unexpected Location %q", loc)
	}
}

func TestCreateAgentDuplicateReturns409(t *testing.T) {
	server := newTestServer(t)
	body := `{"name": "Oliver Smith", "email": "oliver_smith@company.com"}`
	if rec := doRequest(t, server, http.MethodPost, "/agents", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create failed: %d", rec.Code)
	}
	if rec := doRequest(t, server, http.MethodPost, "/agents", body); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestListAgentsFiltersOnEmail(t *testing.T) {
	server := newTestServer(t)
	if rec := doRequest(t, server, http.MethodPost, "/agents",
		`{"name": "Oliver Smith", "email": "oliver_smith@company.com"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}
	rec := doRequest(t, server, http.MethodGet, "/agents?email=oliver_smith@company.com", "")
	agents := decodeBody[[]Agent](t, rec)
	if len(agents) != 1 || agents[0].Name != "Oliver Smith" {
		t.Fatalf("unexpected agents: %+v", agents)
	}
	rec = doRequest(t, server, http.MethodGet, "/agents?email=nobody@company.com", "")
	if empty := decodeBody[[]Agent](t, rec); len(empty) != 0 {
		t.Fatalf("expected no agents, got %+v", empty)
	}
}

func TestMalformedJSONBodyReturns400(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodPost, "/chats", `{"external_id": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	server := newTestServer(t)
	rec := doRequest(t, server, http.MethodDelete, "/chats/abc", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpointExposesRequestCounts(t *testing.T) {
	server := newTestServer(t)
	doRequest(t, server, http.MethodGet, "/health", "")
	rec := doRequest(t, server, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "chatrelay_http_requests_total") {
		t.Fatalf("request counter missing from exposition: %s", rec.Body.String())
	}
}

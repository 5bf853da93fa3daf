package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchEventsSendsWindowAsQueryParams(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"start_at": r.URL.Query().Get("start_at"),
			"end_at":   r.URL.Query().Get("end_at"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"nextPageUrl": nil,
			"events": []map[string]any{
				{"conversation_id": 7, "event_name": "START", "event_at": 1690000000},
			},
		})
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, server.Client())
	startAt := time.Date(2023, 7, 22, 5, 0, 0, 0, time.UTC)
	endAt := startAt.Add(30 * time.Second)
	page, err := source.FetchEvents(context.Background(), startAt, endAt)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if gotQuery["start_at"] != "2023-07-22T05:00:00Z" || gotQuery["end_at"] != "2023-07-22T05:00:30Z" {
		t.Fatalf("unexpected window params: %v", gotQuery)
	}
	if len(page.Events) != 1 || page.Events[0].Kind != KindStart || page.Events[0].ConversationID != 7 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.NextPageURL != nil {
		t.Fatalf("expected no continuation, got %v", *page.NextPageURL)
	}
}

func TestFetchEventsPageUsesURLVerbatim(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		_ = json.NewEncoder(w).Encode(map[string]any{"nextPageUrl": nil, "events": []any{}})
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, server.Client())
	pageURL := server.URL + "/events?start_at=1&end_at=2&page=1"
	if _, err := source.FetchEventsPage(context.Background(), pageURL); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if gotPath != "/events?start_at=1&end_at=2&page=1" {
		t.Fatalf("continuation URL was rewritten: %s", gotPath)
	}
}

func TestSourceErrorDecodesIntoHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "upstream_down", "message": "feed unavailable"})
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, server.Client())
	_, err := source.GetAdvisor(context.Background(), 1)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusBadGateway || httpErr.Code != "upstream_down" {
		t.Fatalf("unexpected error payload: %+v", httpErr)
	}
}

func TestSinkCreateChatPostsJSONBody(t *testing.T) {
	var gotBody CreateChatRequest
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chats" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Chat{ChatID: "chat_1", ExternalID: gotBody.ExternalID, StartedAt: gotBody.StartedAt})
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL, server.Client())
	agentID := "agent_1"
	startedAt := time.Unix(1690000000, 0).UTC()
	chat, err := sink.CreateChat(context.Background(), CreateChatRequest{
		ExternalID: "12345",
		StartedAt:  startedAt,
		AgentID:    &agentID,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if gotBody.ExternalID != "12345" || gotBody.AgentID == nil || *gotBody.AgentID != "agent_1" {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
	if chat.ChatID != "chat_1" || !chat.StartedAt.Equal(startedAt) {
		t.Fatalf("unexpected chat: %+v", chat)
	}
}

func TestSinkFindChatsFiltersByExternalID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats" || r.URL.Query().Get("external_id") != "12345" {
			t.Errorf("unexpected request %s", r.URL.RequestURI())
		}
		_ = json.NewEncoder(w).Encode([]Chat{{ChatID: "chat_1", ExternalID: "12345"}})
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL, server.Client())
	chats, err := sink.FindChatsByExternalID(context.Background(), "12345")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(chats) != 1 || chats[0].ChatID != "chat_1" {
		t.Fatalf("unexpected chats: %+v", chats)
	}
}

func TestSinkUpdateChatOmitsUnsetFields(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/chats/chat_1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(Chat{ChatID: "chat_1"})
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL, server.Client())
	endedAt := time.Unix(1690000900, 0).UTC()
	if err := sink.UpdateChat(context.Background(), "chat_1", UpdateChatRequest{EndedAt: &endedAt}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, present := gotBody["agent_id"]; present {
		t.Fatalf("unset agent_id must be omitted: %v", gotBody)
	}
	if _, present := gotBody["ended_at"]; !present {
		t.Fatalf("ended_at missing from patch: %v", gotBody)
	}
}

func TestNormalizeBaseURLTrimsAndDefaults(t *testing.T) {
	if got := normalizeBaseURL("http://host:9000/", "http://fallback"); got != "http://host:9000" {
		t.Fatalf("trailing slash survived: %q", got)
	}
	if got := normalizeBaseURL("  ", "http://fallback"); got != "http://fallback" {
		t.Fatalf("blank base did not fall back: %q", got)
	}
}

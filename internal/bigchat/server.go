package bigchat

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/agentworkforce/chatrelay/internal/httpapi"
)

// The feed hands out at most one continuation page per window; the page
// parameter only exists so nextPageUrl stays an opaque, self-describing URL.
const maxFeedPage = 1

type Server struct {
	generator *Generator
	logger    *log.Logger
	metrics   *httpapi.Metrics
}

func NewServer(generator *Generator, logger *log.Logger) *Server {
	return &Server{
		generator: generator,
		logger:    logger,
		metrics:   httpapi.NewMetrics("bigchat"),
	}
}

func (s *Server) Handler() http.Handler {
	return s.metrics.Instrument(s)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := httpapi.SplitPath(r.URL.Path)
	switch {
	case len(parts) == 1 && parts[0] == "health" && r.Method == http.MethodGet:
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case len(parts) == 1 && parts[0] == "metrics" && r.Method == http.MethodGet:
		s.metrics.Handler().ServeHTTP(w, r)
	case len(parts) == 1 && parts[0] == "events" && r.Method == http.MethodGet:
		s.handleEvents(w, r)
	case len(parts) == 2 && parts[0] == "conversations" && r.Method == http.MethodGet:
		s.handleConversation(w, r, parts[1])
	case len(parts) == 2 && parts[0] == "advisors" && r.Method == http.MethodGet:
		s.handleAdvisor(w, r, parts[1])
	default:
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	endAt := parseTimeParam(r.URL.Query().Get("end_at"), time.Now())
	startAt := parseTimeParam(r.URL.Query().Get("start_at"), endAt.Add(-30*time.Second))
	page := httpapi.ParseBoundedInt(r.URL.Query().Get("page"), 0, 0, 100)

	events := s.generator.Tick(startAt, endAt)
	s.logger.Printf("serving %d event(s) for window [%s, %s] page %d",
		len(events), startAt.UTC().Format(time.RFC3339), endAt.UTC().Format(time.RFC3339), page)

	var nextPageURL *string
	if len(events) > 0 && page < maxFeedPage && s.generator.Continue() {
		next := nextPage(r, page+1)
		nextPageURL = &next
	}
	httpapi.WriteJSON(w, http.StatusOK, struct {
		NextPageURL *string `json:"nextPageUrl"`
		Events      []Event `json:"events"`
	}{
		NextPageURL: nextPageURL,
		Events:      events,
	})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, rawID string) {
	conversationID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", "invalid conversation id")
		return
	}
	conversation, ok := s.generator.Conversation(conversationID)
	if !ok {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, conversation)
}

func (s *Server) handleAdvisor(w http.ResponseWriter, r *http.Request, rawID string) {
	advisorID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", "invalid advisor id")
		return
	}
	advisor, ok := s.generator.Advisor(advisorID)
	if !ok {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "advisor not found")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, advisor)
}

func parseTimeParam(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(seconds, 0)
	}
	return fallback
}

// nextPage rebuilds the request URL with an advanced page parameter so the
// caller can follow it verbatim.
func nextPage(r *http.Request, page int) string {
	next := *r.URL
	q := next.Query()
	q.Set("page", strconv.Itoa(page))
	next.RawQuery = q.Encode()
	next.Scheme = "http"
	if r.TLS != nil {
		next.Scheme = "https"
	}
	next.Host = r.Host
	return next.String()
}

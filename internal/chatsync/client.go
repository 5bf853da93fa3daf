package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPError carries a non-2xx response from either system. The sync loop
// deliberately has no retry: a transport failure aborts the batch and the
// next scheduled tick starts over.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

type Conversation struct {
	ConversationID int64   `json:"conversation_id"`
	AdvisorID      int64   `json:"advisor_id"`
	Events         []Event `json:"events"`
}

type Advisor struct {
	AdvisorID    int64  `json:"advisor_id"`
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
}

// SourceClient reads the Big Chat side: the windowed event feed, opaque
// continuation pages, and the advisor/conversation lookups the replay
// actions depend on.
type SourceClient interface {
	FetchEvents(ctx context.Context, startAt, endAt time.Time) (EventPage, error)
	FetchEventsPage(ctx context.Context, pageURL string) (EventPage, error)
	GetConversation(ctx context.Context, conversationID int64) (Conversation, error)
	GetAdvisor(ctx context.Context, advisorID int64) (Advisor, error)
}

type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSource(baseURL string, httpClient *http.Client) *HTTPSource {
	return &HTTPSource{
		baseURL:    normalizeBaseURL(baseURL, "http://127.0.0.1:8267"),
		httpClient: orDefaultClient(httpClient),
	}
}

func (c *HTTPSource) FetchEvents(ctx context.Context, startAt, endAt time.Time) (EventPage, error) {
	q := url.Values{}
	q.Set("start_at", startAt.UTC().Format(time.RFC3339))
	q.Set("end_at", endAt.UTC().Format(time.RFC3339))
	var page EventPage
	err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/events?"+q.Encode(), nil, &page)
	return page, err
}

// FetchEventsPage follows a nextPageUrl verbatim; the URL already embeds the
// pagination state the source handed out.
func (c *HTTPSource) FetchEventsPage(ctx context.Context, pageURL string) (EventPage, error) {
	var page EventPage
	err := doJSON(ctx, c.httpClient, http.MethodGet, pageURL, nil, &page)
	return page, err
}

func (c *HTTPSource) GetConversation(ctx context.Context, conversationID int64) (Conversation, error) {
	var conversation Conversation
	err := doJSON(ctx, c.httpClient, http.MethodGet, fmt.Sprintf("%s/conversations/%d", c.baseURL, conversationID), nil, &conversation)
	return conversation, err
}

func (c *HTTPSource) GetAdvisor(ctx context.Context, advisorID int64) (Advisor, error) {
	var advisor Advisor
	err := doJSON(ctx, c.httpClient, http.MethodGet, fmt.Sprintf("%s/advisors/%d", c.baseURL, advisorID), nil, &advisor)
	return advisor, err
}

func normalizeBaseURL(baseURL, fallback string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return fallback
	}
	return baseURL
}

func orDefaultClient(httpClient *http.Client) *http.Client {
	if httpClient == nil {
		return &http.Client{Timeout: 15 * time.Second}
	}
	return httpClient
}

func doJSON(ctx context.Context, client *http.Client, method, requestURL string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	payloadBytes, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(payloadBytes) == 0 {
			return nil
		}
		return json.Unmarshal(payloadBytes, out)
	}
	var errPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payloadBytes, &errPayload)
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Code:       errPayload.Code,
		Message:    errPayload.Message,
	}
}

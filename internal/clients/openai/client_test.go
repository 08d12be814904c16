package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/notewise/notewise-backend/internal/logger"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("development")
	if err != nil {
		tb.Fatalf("logger init: %v", err)
	}
	return log
}

func testClient(tb testing.TB, baseURL string) Client {
	tb.Helper()
	tb.Setenv("OPENAI_API_KEY", "test-key")
	tb.Setenv("OPENAI_BASE_URL", baseURL)
	tb.Setenv("OPENAI_MAX_RETRIES", "0")
	c, err := NewClient(testLogger(tb))
	if err != nil {
		tb.Fatalf("client init: %v", err)
	}
	return c
}

func TestStreamSSE_ParsesEvents(t *testing.T) {
	input := strings.Join([]string{
		": keepalive comment",
		"event: message",
		"data: first",
		"",
		"data: second-a",
		"data: second-b",
		"",
		"data: trailing",
		"",
	}, "\n")

	var events [][2]string
	err := streamSSE(strings.NewReader(input), func(event, data string) error {
		events = append(events, [2]string{event, data})
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	if events[0][0] != "message" || events[0][1] != "first" {
		t.Fatalf("unexpected first event: %v", events[0])
	}
	if events[1][1] != "second-a\nsecond-b" {
		t.Fatalf("multi-line data must join with newline, got %q", events[1][1])
	}
	if events[2][0] != "" {
		t.Fatalf("event name must reset between events, got %q", events[2][0])
	}
}

func TestStreamSSE_FlushesAtEOFWithoutTrailingBlank(t *testing.T) {
	var got string
	err := streamSSE(strings.NewReader("data: tail"), func(event, data string) error {
		got = data
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "tail" {
		t.Fatalf("expected tail flush, got %q", got)
	}
}

func TestStreamSSE_CallbackErrorAborts(t *testing.T) {
	input := "data: one\n\ndata: two\n\n"
	calls := 0
	err := streamSSE(strings.NewReader(input), func(event, data string) error {
		calls++
		return errors.New("stop")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected abort after first event, calls=%d err=%v", calls, err)
	}
}

func chunkLine(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

func TestStreamChat_AccumulatesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chunkLine("Hel")+"\n\n")
		fmt.Fprint(w, chunkLine("lo")+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var deltas []string
	full, err := c.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "Hello" {
		t.Fatalf("expected accumulated text Hello, got %q", full)
	}
	if len(deltas) != 2 || deltas[0] != "Hel" || deltas[1] != "lo" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
}

func TestStreamChat_OnDeltaErrorReturnsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chunkLine("keep")+"\n\n")
		fmt.Fprint(w, chunkLine("drop")+"\n\n")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	calls := 0
	full, err := c.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(d string) error {
		calls++
		if calls == 2 {
			return errors.New("client gone")
		}
		return nil
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if full != "keepdrop" {
		t.Fatalf("expected accumulated text including the failed delta, got %q", full)
	}
}

func TestStreamChat_UpstreamErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chunkLine("par")+"\n\n")
		fmt.Fprint(w, `data: {"error":{"message":"rate limited"}}`+"\n\n")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	full, err := c.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if full != "par" {
		t.Fatalf("expected partial text, got %q", full)
	}
}

func TestStreamChat_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	var httpErr *openAIHTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected http 401 error, got %v", err)
	}
}

func TestEmbed_MapsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Out of order on purpose.
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0.5,0.5]},{"index":0,"embedding":[1.0,0.0]}]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 1.0 || vecs[1][0] != 0.5 {
		t.Fatalf("vectors must map by index: %v", vecs)
	}
}

func TestEmbed_MissingIndexFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1.0]}]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	if _, err := c.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected error for missing embedding")
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(testLogger(t)); err == nil {
		t.Fatalf("expected error without api key")
	}
}

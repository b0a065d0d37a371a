package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"subfix/internal/glossary"
	"subfix/internal/memory"
	"subfix/internal/pairs"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": content,
				},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     120,
			"completion_tokens": 30,
			"total_tokens":      150,
		},
	}
}

func TestClientPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if err := json.NewEncoder(w).Encode(chatResponse(`{"ok":true}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
}

func TestClientPingFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail")
	}
}

func TestClientCompleteReportsUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(chatResponse("hello")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	content, usage, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if content != "hello" {
		t.Fatalf("unexpected content %q", content)
	}
	if usage.PromptTokens != 120 || usage.CompletionTokens != 30 || usage.TotalTokens != 150 {
		t.Fatalf("unexpected usage %+v", usage)
	}
}

func TestClientCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := json.NewEncoder(w).Encode(chatResponse("recovered")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Second, 10*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	content, _, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if content != "recovered" {
		t.Fatalf("unexpected content %q", content)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", calls.Load())
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("unexpected backoff delays %v", slept)
	}
}

func TestClientCompleteHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "4")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if err := json.NewEncoder(w).Encode(chatResponse("ok")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryMaxAttempts(2),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	if _, _, err := client.Complete(context.Background(), "system", "user"); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if len(slept) != 1 || slept[0] != 4*time.Second {
		t.Fatalf("expected single 4s delay, got %v", slept)
	}
}

func TestClientCompleteDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryMaxAttempts(3),
		WithSleeper(func(time.Duration) {}))

	if _, _, err := client.Complete(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for http 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single request, got %d", calls.Load())
	}
}

func TestClientCompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "length",
					"message":       map[string]any{"content": ""},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, _, err := client.Complete(context.Background(), "system", "user")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestRefineBatchDecodesCorrections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := "```json\n[{\"id\":2,\"source\":\"Hello there.\",\"target\":\"你好。\"}]\n```"
		if err := json.NewEncoder(w).Encode(chatResponse(content)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	batch := []pairs.Pair{
		{ID: 1, Source: "Good morning.", Target: "早上好。"},
		{ID: 2, Source: "Hello there.", Target: "妳好。"},
	}
	corrected, usage, err := client.RefineBatch(context.Background(), "system", batch)
	if err != nil {
		t.Fatalf("RefineBatch returned error: %v", err)
	}
	if len(corrected) != 1 || corrected[0].ID != 2 || corrected[0].Target != "你好。" {
		t.Fatalf("unexpected corrections %+v", corrected)
	}
	if usage.TotalTokens != 150 {
		t.Fatalf("unexpected usage %+v", usage)
	}
}

func TestRefineBatchMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(chatResponse("I could not process the request.")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, _, err := client.RefineBatch(context.Background(), "system", []pairs.Pair{{ID: 1, Source: "Hi", Target: "嗨"}})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestExtractTerminologyDecodesEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		userMsg := req.Messages[len(req.Messages)-1].Content
		if !strings.Contains(userMsg, "Enterprise") {
			t.Fatalf("expected established glossary in user prompt, got %q", userMsg)
		}
		content := `[{"source":"Voyager","target":"旅行者号","category":"ship","confidence":0.9,"evidence_ids":[3]}]`
		if err := json.NewEncoder(w).Encode(chatResponse(content)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	state := memory.State{Authoritative: []glossary.Entry{{Source: "Enterprise", Target: "进取号", Category: glossary.CategoryShip, Confidence: 1}}}
	entries, _, err := client.ExtractTerminology(context.Background(), []pairs.Pair{{ID: 3, Source: "The Voyager left.", Target: "旅行者号离开了。"}}, state)
	if err != nil {
		t.Fatalf("ExtractTerminology returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != "Voyager" || entries[0].Category != glossary.CategoryShip {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestCompressMemoryRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"authoritative":[{"source":"Chris","target":"克里斯","category":"person","confidence":1}],"learned":[],"style_notes":"Keep it short.","summary":"Two friends reunite."}`
		if err := json.NewEncoder(w).Encode(chatResponse(content)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	prior := memory.State{
		Authoritative: []glossary.Entry{{Source: "Chris", Target: "克里斯", Category: glossary.CategoryPerson, Confidence: 1}},
		Learned:       []glossary.Entry{{Source: "Bryer", Target: "布赖尔", Category: glossary.CategoryPerson, Confidence: 0.7}},
		StyleNotes:    "Keep it short. Avoid archaic phrasing.",
		Summary:       "Two friends reunite after years apart.",
	}
	compressed, _, err := client.CompressMemory(context.Background(), prior, 200)
	if err != nil {
		t.Fatalf("CompressMemory returned error: %v", err)
	}
	if len(compressed.Authoritative) != 1 || len(compressed.Learned) != 0 {
		t.Fatalf("unexpected compressed state %+v", compressed)
	}
	if compressed.StyleNotes != "Keep it short." {
		t.Fatalf("unexpected style notes %q", compressed.StyleNotes)
	}
}

func TestDecodeModelJSONArrayInProse(t *testing.T) {
	content := "Here are the corrections:\n[{\"id\":1,\"source\":\"Hi\",\"target\":\"嗨\"}]\nLet me know if you need more."
	var raw json.RawMessage
	if err := DecodeModelJSON(content, &raw); err != nil {
		t.Fatalf("DecodeModelJSON returned error: %v", err)
	}
	decoded, err := pairs.UnmarshalWire(raw)
	if err != nil {
		t.Fatalf("UnmarshalWire returned error: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ID != 1 {
		t.Fatalf("unexpected pairs %+v", decoded)
	}
}

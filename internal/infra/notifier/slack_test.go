package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBuildBlockKitPayload(t *testing.T) {
	t.Run("title, description and context", func(t *testing.T) {
		payload := buildBlockKitPayload(SlackMessage{
			Title:       "Main break on Elm St",
			Description: "Crews on site",
			Context:     "Water for Springfield",
		})

		if payload.Text != "Main break on Elm St" {
			t.Errorf("fallback text = %q", payload.Text)
		}
		if len(payload.Blocks) != 2 {
			t.Fatalf("expected 2 blocks, got %d", len(payload.Blocks))
		}
		if payload.Blocks[0].Text.Text != "*Main break on Elm St*\n\nCrews on site" {
			t.Errorf("section text = %q", payload.Blocks[0].Text.Text)
		}
		if payload.Blocks[1].Elements[0].Text != "Water for Springfield" {
			t.Errorf("context text = %q", payload.Blocks[1].Elements[0].Text)
		}
	})

	t.Run("no context block without context", func(t *testing.T) {
		payload := buildBlockKitPayload(SlackMessage{Title: "t"})
		if len(payload.Blocks) != 1 {
			t.Errorf("expected 1 block, got %d", len(payload.Blocks))
		}
	})

	t.Run("long text is truncated", func(t *testing.T) {
		payload := buildBlockKitPayload(SlackMessage{Title: strings.Repeat("a", 200), Description: strings.Repeat("b", 5000)})

		if len(payload.Text) != maxFallbackLength || !strings.HasSuffix(payload.Text, "...") {
			t.Errorf("fallback not truncated: len=%d", len(payload.Text))
		}
		if len(payload.Blocks[0].Text.Text) != maxSectionTextLength {
			t.Errorf("section not truncated: len=%d", len(payload.Blocks[0].Text.Text))
		}
	})
}

func TestSlackClient_Post(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got SlackWebhookPayload
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		client := NewSlackClient(SlackConfig{Timeout: time.Second})
		if err := client.Post(context.Background(), srv.URL+"/services/T/B/X", SlackMessage{Title: "hello"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Text != "hello" {
			t.Errorf("payload text = %q", got.Text)
		}
	})

	tests := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{name: "plain text error", status: http.StatusNotFound, body: "no_service", code: "no_service"},
		{name: "archived channel", status: http.StatusGone, body: "channel_is_archived\n", code: "channel_is_archived"},
		{name: "json error", status: http.StatusForbidden, body: `{"ok":false,"error":"invalid_token"}`, code: "invalid_token"},
		{name: "server error", status: http.StatusInternalServerError, body: "", code: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewSlackClient(SlackConfig{})
			err := client.Post(context.Background(), srv.URL, SlackMessage{Title: "x"})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Code != tt.code {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.code)
			}
		})
	}

	t.Run("transport error hides webhook url", func(t *testing.T) {
		client := NewSlackClient(SlackConfig{Timeout: 200 * time.Millisecond})
		err := client.Post(context.Background(), "http://127.0.0.1:1/services/SECRET", SlackMessage{Title: "x"})
		if err == nil {
			t.Fatal("expected error")
		}
		if strings.Contains(err.Error(), "SECRET") {
			t.Errorf("error leaks webhook url: %v", err)
		}
	})
}

package channel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mfenwick/stakeout"
)

func TestNewWebhook(t *testing.T) {
	w, err := NewWebhook("https://hooks.example.com/notify")
	if err != nil {
		t.Fatalf("NewWebhook() error = %v", err)
	}
	if w.Name() != "webhook" {
		t.Errorf("Name() = %q, want webhook", w.Name())
	}

	named, err := NewWebhook("https://hooks.example.com/notify", WithWebhookName("ops-hook"))
	if err != nil {
		t.Fatalf("NewWebhook() error = %v", err)
	}
	if named.Name() != "ops-hook" {
		t.Errorf("Name() = %q, want ops-hook", named.Name())
	}
}

func TestNewWebhook_Invalid(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "hooks.example.com/notify"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWebhook(tt.url); err == nil {
				t.Errorf("NewWebhook(%q) expected error, got nil", tt.url)
			}
		})
	}
}

func TestWebhook_Send(t *testing.T) {
	var gotBody []byte
	var gotContentType, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	w, err := NewWebhook(server.URL, WithWebhookHeaders(map[string]string{
		"Authorization": "Bearer token",
	}))
	if err != nil {
		t.Fatalf("NewWebhook() error = %v", err)
	}

	if err := w.Send(context.Background(), "item back in stock"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("Authorization = %q, want Bearer token", gotAuth)
	}

	var payload struct {
		Message string `json:"message"`
		SentAt  string `json:"sent_at"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.Message != "item back in stock" {
		t.Errorf("payload.Message = %q, want the notification text", payload.Message)
	}
	if payload.SentAt == "" {
		t.Error("payload.SentAt is empty")
	}
}

func TestWebhook_SendStatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantErr       bool
		wantPermanent bool
	}{
		{"ok", http.StatusOK, false, false},
		{"no content", http.StatusNoContent, false, false},
		{"bad request is permanent", http.StatusBadRequest, true, true},
		{"unauthorized is permanent", http.StatusUnauthorized, true, true},
		{"not found is permanent", http.StatusNotFound, true, true},
		{"request timeout is transient", http.StatusRequestTimeout, true, false},
		{"too many requests is transient", http.StatusTooManyRequests, true, false},
		{"server error is transient", http.StatusInternalServerError, true, false},
		{"bad gateway is transient", http.StatusBadGateway, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			w, err := NewWebhook(server.URL)
			if err != nil {
				t.Fatalf("NewWebhook() error = %v", err)
			}

			err = w.Send(context.Background(), "msg")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && stakeout.IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent(%v) = %v, want %v", err, stakeout.IsPermanent(err), tt.wantPermanent)
			}
		})
	}
}

func TestWebhook_SendTransportError(t *testing.T) {
	w, err := NewWebhook("http://127.0.0.1:1/notify")
	if err != nil {
		t.Fatalf("NewWebhook() error = %v", err)
	}

	err = w.Send(context.Background(), "msg")
	if err == nil {
		t.Fatal("Send() error = nil, want transport error")
	}
	if stakeout.IsPermanent(err) {
		t.Error("transport error marked permanent, want transient")
	}
}

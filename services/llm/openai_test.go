// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var gotReq openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		resp := openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: `{"ok":true}`}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	text, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
		Temperature:  0.1,
		MaxTokens:    256,
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if text != `{"ok":true}` {
		t.Errorf("Complete() = %q, want %q", text, `{"ok":true}`)
	}

	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("expected system+user messages, got %+v", gotReq.Messages)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format, got %+v", gotReq.ResponseFormat)
	}
	if gotReq.MaxCompletionTokens == nil || *gotReq.MaxCompletionTokens != 256 {
		t.Errorf("expected max_completion_tokens 256, got %+v", gotReq.MaxCompletionTokens)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should mention status code, got %v", err)
	}
	if classifyCompletionError(err) != "rate_limit" {
		t.Errorf("classifyCompletionError = %q, want rate_limit", classifyCompletionError(err))
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	var gotReq anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("unexpected api key header %q", key)
		}
		if v := r.Header.Get("anthropic-version"); v != anthropicVersion {
			t.Errorf("unexpected version header %q", v)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		resp := anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "hello"}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-3-5-haiku-latest", server.URL)

	text, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "frame",
		UserPrompt:   "hi",
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("Complete() = %q, want %q", text, "hello")
	}

	// JSONMode appends a JSON-only instruction to the system prompt.
	if !strings.Contains(gotReq.System, "JSON") {
		t.Errorf("expected JSON instruction in system prompt, got %q", gotReq.System)
	}
	if gotReq.MaxTokens <= 0 {
		t.Errorf("max_tokens must default above zero, got %d", gotReq.MaxTokens)
	}
}

func TestClassifyCompletionError(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"context deadline exceeded", "timeout"},
		{"API returned status 401: nope", "auth"},
		{"API returned status 429: slow down", "rate_limit"},
		{"API returned status 503: overloaded", "rate_limit"},
		{"something else entirely", "unknown"},
	}
	for _, tt := range tests {
		err := &testError{tt.msg}
		if got := classifyCompletionError(err); got != tt.want {
			t.Errorf("classifyCompletionError(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
	if classifyCompletionError(nil) != "" {
		t.Error("nil error should classify to empty string")
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

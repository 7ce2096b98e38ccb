package ollama

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

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy_500", http.StatusInternalServerError, true},
		{"unhealthy_503", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/version" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
				if tt.statusCode == http.StatusOK {
					w.Write([]byte(`{"version": "0.5.7"}`))
				}
			}))
			defer server.Close()

			client := NewClient(server.URL)
			err := client.HealthCheck(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnhealthy) {
				t.Errorf("expected ErrUnhealthy, got %v", err)
			}
		})
	}
}

func TestClient_HealthCheck_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"version": "0.5.7"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := client.HealthCheck(ctx)
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestClient_Version(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version": "0.5.7"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	v, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v != "0.5.7" {
		t.Errorf("unexpected version: %s", v)
	}
}

func TestClient_Generate(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content-type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "qwen2.5vl:7b",
			"response": "{\"beams\": []}",
			"done": true,
			"done_reason": "stop",
			"total_duration": 2500000000,
			"prompt_eval_count": 1200,
			"eval_count": 48
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Generate(context.Background(), &GenerateRequest{
		Model:     "qwen2.5vl:7b",
		Prompt:    "extract the schedule",
		System:    "you read drawings",
		Images:    []string{"aGVsbG8="},
		KeepAlive: "10m",
		Options:   &GenerateOptions{Temperature: 0.1},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if resp.Response != `{"beams": []}` {
		t.Errorf("unexpected response text: %s", resp.Response)
	}
	if !resp.Done || resp.DoneReason != "stop" {
		t.Errorf("unexpected done state: %v %s", resp.Done, resp.DoneReason)
	}
	if resp.EvalCount != 48 || resp.PromptEvalCount != 1200 {
		t.Errorf("unexpected token counts: %d %d", resp.EvalCount, resp.PromptEvalCount)
	}

	// Streaming must be disabled regardless of what the caller set.
	if stream, ok := received["stream"].(bool); !ok || stream {
		t.Errorf("stream not disabled in request: %v", received["stream"])
	}
	if received["model"] != "qwen2.5vl:7b" {
		t.Errorf("unexpected model in request: %v", received["model"])
	}
	if received["keep_alive"] != "10m" {
		t.Errorf("unexpected keep_alive in request: %v", received["keep_alive"])
	}
	images, ok := received["images"].([]any)
	if !ok || len(images) != 1 {
		t.Errorf("unexpected images in request: %v", received["images"])
	}
	opts, ok := received["options"].(map[string]any)
	if !ok || opts["temperature"] != 0.1 {
		t.Errorf("unexpected options in request: %v", received["options"])
	}
}

func TestClient_Generate_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "model 'nope:1b' not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Generate(context.Background(), &GenerateRequest{Model: "nope:1b", Prompt: "x"})
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestClient_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "out of memory"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Generate(context.Background(), &GenerateRequest{Model: "m", Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for server failure")
	}
	if !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("error should carry the runtime message, got: %v", err)
	}
}

func TestClient_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models": [
			{"name": "qwen2.5vl:7b", "size": 6008000000, "details": {"family": "qwen2vl", "parameter_size": "7.6B"}},
			{"name": "llama3.2-vision:11b", "size": 7900000000, "details": {"family": "mllama"}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Name != "qwen2.5vl:7b" {
		t.Errorf("unexpected model name: %s", models[0].Name)
	}
	if models[0].Details.Family != "qwen2vl" {
		t.Errorf("unexpected family: %s", models[0].Details.Family)
	}
}

func TestClient_HasModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": [{"name": "qwen2.5vl:7b"}, {"name": "minicpm-v:latest"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	tests := []struct {
		name string
		want bool
	}{
		{"qwen2.5vl:7b", true},
		{"minicpm-v", true}, // untagged resolves to :latest
		{"minicpm-v:latest", true},
		{"qwen2.5vl", false}, // only the 7b tag is present
		{"llama3.2-vision:11b", false},
	}
	for _, tt := range tests {
		got, err := client.HasModel(context.Background(), tt.name)
		if err != nil {
			t.Fatalf("HasModel(%q) error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("HasModel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestModelNamesEqual(t *testing.T) {
	tests := []struct {
		listed    string
		requested string
		want      bool
	}{
		{"qwen2.5vl:7b", "qwen2.5vl:7b", true},
		{"minicpm-v:latest", "minicpm-v", true},
		{"minicpm-v", "minicpm-v:latest", true},
		{"qwen2.5vl:7b", "qwen2.5vl", false},
		{"qwen2.5vl:7b", "qwen2.5vl:3b", false},
		{"llama3.2-vision:11b", "qwen2.5vl:7b", false},
	}
	for _, tt := range tests {
		if got := ModelNamesEqual(tt.listed, tt.requested); got != tt.want {
			t.Errorf("ModelNamesEqual(%q, %q) = %v, want %v", tt.listed, tt.requested, got, tt.want)
		}
	}
}

func TestClient_Pull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req["model"] != "qwen2.5vl:7b" {
			t.Errorf("unexpected model in request: %v", req["model"])
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"status": "pulling manifest"}
{"status": "pulling sha256:abc", "digest": "sha256:abc", "total": 1000, "completed": 500}
{"status": "pulling sha256:abc", "digest": "sha256:abc", "total": 1000, "completed": 1000}
{"status": "success"}
`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	var statuses []string
	err := client.Pull(context.Background(), "qwen2.5vl:7b", func(p PullProgress) {
		statuses = append(statuses, p.Status)
	})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if len(statuses) != 4 {
		t.Fatalf("expected 4 progress updates, got %d: %v", len(statuses), statuses)
	}
	if statuses[len(statuses)-1] != "success" {
		t.Errorf("expected final status success, got %s", statuses[len(statuses)-1])
	}
}

func TestClient_Pull_RuntimeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "pulling manifest"}
{"error": "pull model manifest: file does not exist"}
`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Pull(context.Background(), "nope:latest", nil)
	if err == nil {
		t.Fatal("expected error from pull failure")
	}
	if !strings.Contains(err.Error(), "file does not exist") {
		t.Errorf("error should carry the runtime message, got: %v", err)
	}
}

func TestClient_URLNormalization(t *testing.T) {
	// URL with trailing slash should be normalized
	client := NewClient("http://localhost:11434/")
	if client.url != "http://localhost:11434" {
		t.Errorf("URL not normalized: %s", client.url)
	}

	// URL without trailing slash should stay the same
	client2 := NewClient("http://localhost:11434")
	if client2.url != "http://localhost:11434" {
		t.Errorf("URL changed unexpectedly: %s", client2.url)
	}
}

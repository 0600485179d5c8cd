package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestClientGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/image/generate" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		for _, key := range []string{"prompt", "negative_prompt", "model", "width", "height", "steps", "cfg_scale", "variants", "format", "safe_mode", "hide_watermark", "embed_exif_metadata", "lora_strength"} {
			if _, ok := payload[key]; !ok {
				t.Fatalf("payload missing %q: %v", key, payload)
			}
		}
		if _, ok := payload["style_preset"]; ok {
			t.Fatalf("style_preset must be absent when unset: %v", payload)
		}
		if _, ok := payload["seed"]; ok {
			t.Fatalf("seed must be absent when unset: %v", payload)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"images": []string{"AA==", "BB=="}})
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	batch, err := client.Generate(context.Background(), "test-key", GenerationRequest{
		Prompt:   "a lighthouse",
		Model:    "fluently-xl",
		Width:    1024,
		Height:   1024,
		Steps:    30,
		Variants: 2,
		Format:   FormatPNG,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if batch.Len() != 2 || batch.Images[0] != "AA==" || batch.Images[1] != "BB==" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if batch.Format != FormatPNG {
		t.Fatalf("unexpected format: %s", batch.Format)
	}
}

func TestClientGenerateSendsStylePresetAndSeed(t *testing.T) {
	var captured map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{"images": []string{"AA=="}})
	}))
	defer ts.Close()

	seed := int64(42)
	client := NewClient(Options{BaseURL: ts.URL})
	_, err := client.Generate(context.Background(), "k", GenerationRequest{Prompt: "p", Variants: 1, StylePreset: "Anime", Seed: &seed, Format: FormatWEBP})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if captured["style_preset"] != "Anime" {
		t.Fatalf("style_preset mismatch: %v", captured["style_preset"])
	}
	if captured["seed"] != float64(42) {
		t.Fatalf("seed mismatch: %v", captured["seed"])
	}
}

func TestClientMissingTokenSkipsNetwork(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	ctx := context.Background()
	checks := []func() error{
		func() error { _, err := client.Generate(ctx, "", GenerationRequest{Prompt: "p"}); return err },
		func() error { _, err := client.Upscale(ctx, " ", UpscaleRequest{Image: "AA=="}); return err },
		func() error { _, err := client.Edit(ctx, "", EditRequest{Image: "AA==", Mask: []byte{1}}); return err },
		func() error { _, err := client.ModelTraits(ctx, ""); return err },
	}
	for i, call := range checks {
		if kind := KindOf(call()); kind != KindUnauthenticated {
			t.Fatalf("call %d: kind = %s, want %s", i, kind, KindUnauthenticated)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("expected no network calls, got %d", n)
	}
}

func TestClientUpscale(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/image/upscale" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload UpscaleRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Image != "AA==" || payload.Scale != "4" || payload.Format != FormatJPEG {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"image": "UP=="})
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	batch, err := client.Upscale(context.Background(), "k", UpscaleRequest{Image: "AA==", Scale: "4", Format: FormatJPEG})
	if err != nil {
		t.Fatalf("Upscale error: %v", err)
	}
	if batch.Len() != 1 || batch.Images[0] != "UP==" || batch.Format != FormatJPEG {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestClientEditEncodesMask(t *testing.T) {
	mask := []byte{0x89, 0x50, 0x4e, 0x47}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload["mask"] != base64.StdEncoding.EncodeToString(mask) {
			t.Fatalf("mask not base64 encoded: %q", payload["mask"])
		}
		if payload["mode"] != "inpaint" || payload["instruction"] != "add a hat" || payload["image"] != "AA==" {
			t.Fatalf("unexpected payload: %v", payload)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"image": "ED=="})
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	batch, err := client.Edit(context.Background(), "k", EditRequest{Image: "AA==", Mask: mask, Mode: EditModeInpaint, Instruction: "add a hat", Format: FormatPNG})
	if err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if batch.Len() != 1 || batch.Images[0] != "ED==" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestClientEditEmptyImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	_, err := client.Edit(context.Background(), "k", EditRequest{Image: "AA==", Mask: []byte{1}})
	if KindOf(err) != KindUnknown {
		t.Fatalf("expected unknown kind, got %v", err)
	}
}

func TestClientGenerateEmptyBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images":[]}`))
	}))
	defer ts.Close()

	batch, err := NewClient(Options{BaseURL: ts.URL}).Generate(context.Background(), "k", GenerationRequest{Prompt: "p", Variants: 1})
	if KindOf(err) != KindUnknown {
		t.Fatalf("expected unknown kind, got %v", err)
	}
	if batch.Len() != 0 {
		t.Fatalf("expected empty batch on error, got %d images", batch.Len())
	}
}

func TestClientModelTraits(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "flat mapping", body: `{"fluently-xl":{"fastest":true},"flux-dev":{"quality":"high"}}`},
		{name: "data wrapper", body: `{"data":{"fluently-xl":{"fastest":true},"flux-dev":{"quality":"high"}}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/models/traits" {
					t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				if r.ContentLength > 0 {
					t.Fatalf("GET must not carry a body")
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			traits, err := NewClient(Options{BaseURL: ts.URL}).ModelTraits(context.Background(), "k")
			if err != nil {
				t.Fatalf("ModelTraits error: %v", err)
			}
			if len(traits) != 2 {
				t.Fatalf("unexpected traits: %v", traits)
			}
			if _, ok := traits["flux-dev"]; !ok {
				t.Fatalf("missing flux-dev: %v", traits)
			}
		})
	}
}

func TestClientClassifiesStatus(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{status: 400, body: `{"message":"Invalid model selected"}`, wantKind: KindBadRequest, wantMsg: "Invalid model selected"},
		{status: 400, body: `{"message":"invalid model","error":{"code":1}}`, wantKind: KindBadRequest, wantMsg: "invalid model"},
		{status: 400, body: `{"message":7,"error":{"message":"model not found"}}`, wantKind: KindBadRequest, wantMsg: "model not found"},
		{status: 400, body: `not json`, wantKind: KindBadRequest, wantMsg: "Request failed with status 400"},
		{status: 401, body: `{"message":"nope"}`, wantKind: KindUnauthorized, wantMsg: "Invalid API key"},
		{status: 402, wantKind: KindPaymentRequired, wantMsg: "Account billing issue"},
		{status: 415, wantKind: KindUnsupportedMedia, wantMsg: "Invalid content type"},
		{status: 429, body: `{"message":"slow down"}`, wantKind: KindRateLimited, wantMsg: "Rate limit exceeded"},
		{status: 500, wantKind: KindServerError, wantMsg: "Server error, please try again later"},
		{status: 503, wantKind: KindUnavailable, wantMsg: "Service temporarily unavailable"},
		{status: 418, body: `<html>`, wantKind: KindUnknown, wantMsg: "Request failed with status 418"},
		{status: 409, body: `{"error":"conflict"}`, wantKind: KindUnknown, wantMsg: "conflict (status 409)"},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			_, err := NewClient(Options{BaseURL: ts.URL}).Generate(context.Background(), "k", GenerationRequest{Prompt: "p", Variants: 1})
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if apiErr.Kind != tc.wantKind {
				t.Fatalf("kind = %s, want %s", apiErr.Kind, tc.wantKind)
			}
			if apiErr.Message != tc.wantMsg {
				t.Fatalf("message = %q, want %q", apiErr.Message, tc.wantMsg)
			}
			if apiErr.Status != tc.status {
				t.Fatalf("status = %d, want %d", apiErr.Status, tc.status)
			}
			if n := atomic.LoadInt32(&calls); n != 1 {
				t.Fatalf("expected exactly one call (no retry), got %d", n)
			}
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := NewClient(Options{BaseURL: url}).Generate(context.Background(), "k", GenerationRequest{Prompt: "p"})
	if KindOf(err) != KindUnreachable {
		t.Fatalf("expected unreachable, got %v", err)
	}
}

func TestClientUnreadableSuccessBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images":`))
	}))
	defer ts.Close()

	_, err := NewClient(Options{BaseURL: ts.URL}).Generate(context.Background(), "k", GenerationRequest{Prompt: "p"})
	if KindOf(err) != KindUnknown {
		t.Fatalf("expected unknown, got %v", err)
	}
}

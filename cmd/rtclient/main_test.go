package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/storefront-realtime/internal/connection"
	"github.com/rickgao/storefront-realtime/internal/telemetry"
)

func TestHealthHandler(t *testing.T) {
	manager := connection.NewManager(connection.DefaultConfig())
	batcher := telemetry.NewBatcher(telemetry.DefaultConfig(), nil, nil, nil)

	rec := httptest.NewRecorder()
	createHealthHandler(manager, batcher).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d while disconnected", rec.Code, http.StatusServiceUnavailable)
	}

	var body struct {
		Status     string `json:"status"`
		Components struct {
			Connection struct {
				State   string               `json:"state"`
				Dropped connection.DropStats `json:"dropped"`
			} `json:"connection"`
			History struct {
				Chat struct{ Capacity int } `json:"Chat"`
			} `json:"history"`
			Telemetry *telemetry.Stats `json:"telemetry"`
		} `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Status != "unhealthy" || body.Components.Connection.State != "disconnected" {
		t.Errorf("status = %q, state = %q", body.Status, body.Components.Connection.State)
	}
	if body.Components.History.Chat.Capacity != 100 {
		t.Errorf("history chat capacity = %d, want 100", body.Components.History.Chat.Capacity)
	}
	if body.Components.Telemetry == nil {
		t.Error("telemetry component missing")
	}
}

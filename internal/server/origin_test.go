package server

import (
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"exact match", []string{"http://localhost:8080"}, "http://localhost:8080", true},
		{"case insensitive", []string{"http://LOCALHOST:8080"}, "http://localhost:8080", true},
		{"trailing path ignored", []string{"http://localhost:8080/"}, "http://localhost:8080/chat", true},
		{"different port", []string{"http://localhost:8080"}, "http://localhost:9090", false},
		{"different scheme", []string{"http://localhost:8080"}, "https://localhost:8080", false},
		{"missing origin", []string{"http://localhost:8080"}, "", false},
		{"malformed origin", []string{"http://localhost:8080"}, "not-a-url", false},
		{"wildcard", []string{"*"}, "https://anything.example", true},
		{"wildcard still needs a valid origin", []string{"*"}, "http://", false},
		{"invalid entries skipped", []string{"  ", "nope", "http://ok.example"}, "http://ok.example", true},
		{"empty allow list", nil, "http://localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := newOriginPolicy(tt.allowed, log)
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}

			assert.Equal(t, tt.want, policy.checkOrigin(r))
		})
	}
}

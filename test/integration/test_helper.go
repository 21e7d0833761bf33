package integration

import (
	"os"
	"testing"
)

var baseURL string

func TestMain(m *testing.M) {
	// These tests exercise a running API instance; point API_BASE_URL at
	// it (e.g. http://localhost:8080) to enable them.
	baseURL = os.Getenv("API_BASE_URL")

	os.Exit(m.Run())
}

func requireAPI(t *testing.T) {
	t.Helper()
	if baseURL == "" {
		t.Skip("API_BASE_URL not set, skipping integration test")
	}
}

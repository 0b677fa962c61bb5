package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizgrid.org/internal/kv"
	"bizgrid.org/internal/session"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc123", "abc123", false},
		{"case insensitive scheme", "bearer abc123", "abc123", false},
		{"padded", "  Bearer   abc123  ", "abc123", false},
		{"empty", "", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"scheme only", "Bearer ", "", true},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	public := []string{"/v1/auth/login", "/healthz", "/readyz", "/metrics", "/v1/info", "/"}
	for _, p := range public {
		if !isPublicPath(p) {
			t.Fatalf("expected %q to be public", p)
		}
	}
	private := []string{"/v1/notifications", "/v1/entitlements", "/v1/auth/session", "/v1/modules/crm/access"}
	for _, p := range private {
		if isPublicPath(p) {
			t.Fatalf("expected %q to be protected", p)
		}
	}
}

func TestWithAuthMatchesSessionCredential(t *testing.T) {
	ctx := context.Background()
	sessions, err := session.New(ctx, kv.NewMemory())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if err := sessions.SetAuth(ctx, session.Identity{ID: "u-1", Username: "demo"}, "session-token"); err != nil {
		t.Fatalf("SetAuth: %v", err)
	}

	api := &API{sessions: sessions}
	handler := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with matching credential, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer other-token")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with mismatched credential, got %d", rr.Code)
	}

	// Clearing the session invalidates the previously valid token.
	if err := sessions.ClearAuth(ctx); err != nil {
		t.Fatalf("ClearAuth: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after session clear, got %d", rr.Code)
	}
}

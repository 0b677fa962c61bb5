package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/metrics", "/metrics"},
		{"/v1/notifications", "/v1/notifications"},
		{"/v1/notifications/01ABC", "/v1/notifications/:id"},
		{"/v1/notifications/01ABC/read", "/v1/notifications/:id/read"},
		{"/v1/notifications/stream", "/v1/notifications/stream"},
		{"/v1/notifications/unread-count", "/v1/notifications/unread-count"},
		{"/v1/notifications/purge", "/v1/notifications/purge"},
		{"/v1/notifications/a/b/c", "/v1/notifications/a/b/c"},
		{"/v1/modules/crm/access", "/v1/modules/:module/access"},
		{"/v1/modules/crm/other", "/v1/modules/crm/other"},
		{"/v1/entitlements", "/v1/entitlements"},
		{"/v1/notifications?type=compliance", "/v1/notifications"},
		{"/v1/notifications/01ABC?x=1", "/v1/notifications/:id"},
	}
	for _, tc := range cases {
		if got := CanonicalPath(tc.input); got != tc.expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", tc.input, got, tc.expected)
		}
	}
}

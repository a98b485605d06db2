package shared

import "testing"

func TestRedact(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bearer header",
			in:   "Bearer abc123def456ghi789jkl0",
			want: "Bearer [REDACTED]",
		},
		{
			name: "auth header echoed in service error",
			in:   `umap: GET dia/cell-line returned 401: {"header":"Bearer abc123def456ghi789jkl0"}`,
			want: `umap: GET dia/cell-line returned 401: {"header":"Bearer [REDACTED]"}`,
		},
		{
			name: "api key assignment",
			in:   "api_key=abcdef1234567890abcdef",
			want: "api_key[REDACTED]",
		},
		{
			name: "uuid token",
			in:   "token: 01234567-89ab-cdef-0123-456789abcdef",
			want: "token[REDACTED]",
		},
		{
			name: "plain fetch log line",
			in:   "fetched 212 depmap records for KRAS",
			want: "fetched 212 depmap records for KRAS",
		},
		{
			name: "short values stay",
			in:   "Bearer short",
			want: "Bearer short",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Redact(tc.in); got != tc.want {
				t.Fatalf("Redact(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRedactEnvValue(t *testing.T) {
	cases := []struct {
		key, value string
		want       string
	}{
		{"UMAP_API_KEY", "some-secret", "[REDACTED]"},
		{"TELEGRAM_TOKEN", "123456:bot-token", "[REDACTED]"},
		{"password", "s3cret", "[REDACTED]"},
		{"BIOFETCH_OUTPUT_DIR", "/tmp/out", "/tmp/out"},
		{"BIOFETCH_LOG_LEVEL", "info", "info"},
		{"TELEGRAM_CHAT_ID", "-100123", "-100123"},
	}
	for _, tc := range cases {
		if got := RedactEnvValue(tc.key, tc.value); got != tc.want {
			t.Errorf("RedactEnvValue(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

package proxy

import "testing"

func TestFilterHeaders(t *testing.T) {
	lines := []string{
		"User-Agent: t",
		"Cookie: x",
		"user-agent: lower",
		"Referer: http://a/",
		"Proxy-Connection: keep-alive",
		"no colon here",
		"Authorization: Basic Zm9vOmJhcg==",
		"If-Modified-Since: Sat, 29 Oct 1994 19:43:31 GMT",
		"From: me@example.com",
		"User-Agent : spaced",
	}

	got := FilterHeaders(lines)
	want := []string{
		"User-Agent: t",
		"Referer: http://a/",
		"Authorization: Basic Zm9vOmJhcg==",
		"If-Modified-Since: Sat, 29 Oct 1994 19:43:31 GMT",
		"From: me@example.com",
	}
	if len(got) != len(want) {
		t.Fatalf("FilterHeaders() kept %d lines, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Raw != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i].Raw, want[i])
		}
	}
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		headers []HeaderLine
		want    string
	}{
		{
			name: "no headers",
			path: "/",
			want: "GET / HTTP/1.0\r\n\r\n",
		},
		{
			name: "headers kept verbatim",
			path: "/index.html?q=1",
			headers: []HeaderLine{
				{Name: "User-Agent", Raw: "User-Agent: t"},
				{Name: "From", Raw: "From:x"},
			},
			want: "GET /index.html?q=1 HTTP/1.0\r\nUser-Agent: t\r\nFrom:x\r\n\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildRequest(tt.path, tt.headers); got != tt.want {
				t.Errorf("BuildRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

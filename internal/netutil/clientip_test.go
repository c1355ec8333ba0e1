package netutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pgregory.net/rapid"
)

func ipv4Generator() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		return fmt.Sprintf("%d.%d.%d.%d",
			rapid.IntRange(1, 223).Draw(t, "a"),
			rapid.IntRange(0, 255).Draw(t, "b"),
			rapid.IntRange(0, 255).Draw(t, "c"),
			rapid.IntRange(1, 254).Draw(t, "d"),
		)
	})
}

func TestClientIP_PrefersFirstForwardedEntry(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		client := ipv4Generator().Draw(rt, "client")
		proxy := ipv4Generator().Draw(rt, "proxy")
		req := httptest.NewRequest(http.MethodPost, "/api/inquiries/comprehensive", nil)
		req.Header.Set("X-Forwarded-For", " "+client+" , "+proxy)
		req.Header.Set("X-Real-IP", proxy)

		if got := ClientIP(req); got != client {
			rt.Fatalf("ClientIP = %q, want first forwarded entry %q", got, client)
		}
	})
}

func TestClientIP_FallsBackToRealIP(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		realIP := ipv4Generator().Draw(rt, "real")
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Real-IP", realIP)

		if got := ClientIP(req); got != realIP {
			rt.Fatalf("ClientIP = %q, want X-Real-IP %q", got, realIP)
		}
	})
}

func TestClientIP_FallsBackToPeerAddress(t *testing.T) {
	cases := map[string]string{
		"198.51.100.4:52100": "198.51.100.4",
		"[2001:db8::1]:443":  "2001:db8::1",
		"203.0.113.9":        "203.0.113.9",
		"":                   "",
	}
	for remote, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote
		if got := ClientIP(req); got != want {
			t.Errorf("ClientIP(RemoteAddr=%q) = %q, want %q", remote, got, want)
		}
	}
}

func TestClientIP_IgnoresEmptyForwardedEntry(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", " , 10.0.0.1")
	req.RemoteAddr = "192.0.2.10:1234"
	if got := ClientIP(req); got != "192.0.2.10" {
		t.Fatalf("ClientIP = %q, want peer address", got)
	}
	if ClientIP(nil) != "" {
		t.Fatal("nil request should yield empty ip")
	}
}

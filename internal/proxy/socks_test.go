package proxy

import (
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPClient(t *testing.T) {
	direct, err := NewHTTPClient("", 0)
	if err != nil {
		t.Fatalf("NewHTTPClient(direct) error = %v", err)
	}
	if direct.Transport != nil {
		t.Error("direct client should use the default transport")
	}
	if direct.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v, want 120s", direct.Timeout)
	}

	socks, err := NewHTTPClient("127.0.0.1:1080", 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient(socks) error = %v", err)
	}
	if _, ok := socks.Transport.(*http.Transport); !ok {
		t.Errorf("Transport = %T, want *http.Transport", socks.Transport)
	}
}

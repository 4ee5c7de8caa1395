package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	tokens, err := NewTokens("secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	tok, err := tokens.Issue(7)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id != 7 {
		t.Fatalf("id = %d", id)
	}
}

func TestParseRejects(t *testing.T) {
	tokens, _ := NewTokens("secret")
	other, _ := NewTokens("other")
	foreign, _ := other.Issue(1)

	expired, _ := NewTokens("secret")
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	stale, _ := expired.Issue(1)

	tests := []struct {
		name string
		tok  string
		want error
	}{
		{"missing", "", ErrMissingToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong key", foreign, ErrInvalidToken},
		{"expired", stale, ErrInvalidToken},
	}
	for _, tt := range tests {
		if _, err := tokens.Parse(tt.tok); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens(""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	if got := FromRequest(r); got != "q" {
		t.Fatalf("query token = %q", got)
	}
	r.Header.Set("Authorization", "Bearer h")
	if got := FromRequest(r); got != "h" {
		t.Fatalf("header token = %q", got)
	}
}

package replication

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type diagnostics struct {
	got []Diagnostic
}

func (d *diagnostics) RecordDiagnostic(diag Diagnostic) {
	d.got = append(d.got, diag)
}

func TestRequireAuthority(t *testing.T) {
	rec := &diagnostics{}
	g := NewGate(zerolog.Nop(), rec)

	if !g.RequireAuthority(Authority, "op") {
		t.Fatalf("authority was rejected")
	}
	if len(rec.got) != 0 {
		t.Fatalf("authority produced diagnostics: %+v", rec.got)
	}

	if g.RequireAuthority(Remote, "damage") {
		t.Fatalf("remote side was accepted")
	}
	if len(rec.got) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(rec.got))
	}
	if !errors.Is(rec.got[0].Err, ErrAuthorityViolation) || rec.got[0].Op != "damage" {
		t.Fatalf("unexpected diagnostic %+v", rec.got[0])
	}
}

func TestGateWithoutRecorder(t *testing.T) {
	g := NewGate(zerolog.Nop(), nil)
	g.Reject(Diagnostic{Err: ErrStaleTarget, Op: "respawn"})
	if g.RequireAuthority(Side(7), "op") {
		t.Fatalf("unknown side was accepted")
	}
}

func TestSideString(t *testing.T) {
	tests := []struct {
		side Side
		want string
	}{
		{Authority, "authority"},
		{Remote, "remote"},
		{Side(9), "side(9)"},
	}
	for _, tt := range tests {
		if got := tt.side.String(); got != tt.want {
			t.Errorf("Side(%d).String() = %q, want %q", int(tt.side), got, tt.want)
		}
	}
}

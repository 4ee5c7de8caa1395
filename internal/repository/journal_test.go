package repository

import (
	"context"
	"path/filepath"
	"shooter-sync/internal/database"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestJournal(t *testing.T) *JournalRepository {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewJournalRepository(db, zerolog.Nop())
}

func TestInsertAndRecent(t *testing.T) {
	r := newTestJournal(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	err := r.Insert(ctx,
		domain.Event{Kind: domain.EventJoin, Session: 0, Team: 0, Detail: "Server Player", CreatedAt: base},
		domain.Event{Kind: domain.EventDeath, Session: 0, Team: 0, Detail: "life", CreatedAt: base.Add(time.Second)},
		domain.Event{Kind: domain.EventRespawn, Session: 0, Team: 0, CreatedAt: base.Add(2 * time.Second)},
	)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := r.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Kind != domain.EventRespawn || got[1].Kind != domain.EventDeath {
		t.Fatalf("unexpected events %+v", got)
	}
	if got[0].ID == "" || !got[1].CreatedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("fields not round-tripped: %+v", got[1])
	}
}

func TestAsyncWriter(t *testing.T) {
	r := newTestJournal(t)
	r.Start()

	for i := 0; i < 10; i++ {
		r.RecordEvent(domain.Event{Kind: domain.EventScore, Session: domain.SessionID(i), Team: 1})
	}
	r.RecordDiagnostic(replication.Diagnostic{Err: replication.ErrAuthorityViolation, Op: "damage", Detail: "acting side remote"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Records after Stop are ignored.
	r.RecordEvent(domain.Event{Kind: domain.EventJoin})

	got, err := r.Recent(context.Background(), 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("expected 11 events, got %d", len(got))
	}
	rejections := 0
	for _, e := range got {
		if e.Kind == domain.EventRejection {
			rejections++
			if e.Detail != "damage: authority violation (acting side remote)" {
				t.Fatalf("detail %q", e.Detail)
			}
		}
	}
	if rejections != 1 {
		t.Fatalf("rejections = %d", rejections)
	}
}

func TestResults(t *testing.T) {
	r := newTestJournal(t)
	ctx := context.Background()
	finished := time.Unix(1_700_000_000, 0)

	if err := r.SaveResult(ctx, domain.MatchResult{WinningTeam: 1, Scores: []int{3, 5}, FinishedAt: finished}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	got, err := r.Results(ctx, 10)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(got) != 1 || got[0].WinningTeam != 1 || !slices.Equal(got[0].Scores, []int{3, 5}) {
		t.Fatalf("unexpected results %+v", got)
	}
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"shooter-sync/internal/constants"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// JournalRepository stores match events and rejection diagnostics. Records
// from the match loop are queued and written in batches by a background
// writer so the loop never waits on disk.
type JournalRepository struct {
	db     *sql.DB
	logger zerolog.Logger

	queue   chan domain.Event
	done    chan struct{}
	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewJournalRepository(sqlDB *sql.DB, logger zerolog.Logger) *JournalRepository {
	return &JournalRepository{
		db:     sqlDB,
		logger: logger.With().Str("component", "journal").Logger(),
		queue:  make(chan domain.Event, constants.JournalBuffer),
		done:   make(chan struct{}),
	}
}

// Start launches the background writer.
func (r *JournalRepository) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	go r.run()
}

// Stop flushes queued records and stops the writer.
func (r *JournalRepository) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	close(r.queue)
	r.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to flush journal: %w", ctx.Err())
	}
}

// RecordEvent queues an event. When the queue is full the event is dropped.
func (r *JournalRepository) RecordEvent(e domain.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Warn().Str("kind", string(e.Kind)).Msg("journal queue full, event dropped")
	}
}

// RecordDiagnostic journals a rejected operation.
func (r *JournalRepository) RecordDiagnostic(d replication.Diagnostic) {
	detail := d.Op
	if d.Err != nil {
		detail = fmt.Sprintf("%s: %v", d.Op, d.Err)
	}
	if d.Detail != "" {
		detail += " (" + d.Detail + ")"
	}
	r.RecordEvent(domain.Event{
		Kind:      domain.EventRejection,
		Session:   -1,
		Team:      domain.NoTeam,
		Detail:    detail,
		CreatedAt: time.Now(),
	})
}

func (r *JournalRepository) run() {
	defer close(r.done)

	batch := make([]domain.Event, 0, constants.JournalBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		if err := r.Insert(ctx, batch...); err != nil {
			r.logger.Error().Err(err).Int("events", len(batch)).Msg("failed to write journal batch")
		}
		batch = batch[:0]
	}

	for e := range r.queue {
		batch = append(batch, e)
	drain:
		for len(batch) < constants.JournalBatchSize {
			select {
			case next, ok := <-r.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		flush()
	}
	flush()
}

// Insert writes events in one transaction. Events without an id get one.
func (r *JournalRepository) Insert(ctx context.Context, events ...domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO match_events (id, kind, session_id, team_id, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		id := e.ID
		if id == "" {
			if id, err = gonanoid.New(); err != nil {
				return fmt.Errorf("failed to generate event id: %w", err)
			}
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, id, string(e.Kind), int(e.Session), int(e.Team), e.Detail, e.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert %s event: %w", e.Kind, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit events, newest first.
func (r *JournalRepository) Recent(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = constants.JournalDefaultLimit
	}
	if limit > constants.JournalMaxLimit {
		limit = constants.JournalMaxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, session_id, team_id, detail, created_at FROM match_events ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0, limit)
	for rows.Next() {
		var (
			e             domain.Event
			kind          string
			session, team int
		)
		if err := rows.Scan(&e.ID, &kind, &session, &team, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.Session = domain.SessionID(session)
		e.Team = domain.TeamID(team)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return events, nil
}

// SaveResult stores a finished match.
func (r *JournalRepository) SaveResult(ctx context.Context, res domain.MatchResult) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate result id: %w", err)
	}
	scores, err := json.Marshal(res.Scores)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO match_results (id, winning_team, scores, finished_at) VALUES (?, ?, ?, ?)`,
		id, int(res.WinningTeam), string(scores), res.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save match result: %w", err)
	}
	r.logger.Info().Str("result_id", id).Int("winning_team", int(res.WinningTeam)).Msg("match result saved")
	return nil
}

// Results returns stored match results, newest first.
func (r *JournalRepository) Results(ctx context.Context, limit int) ([]domain.MatchResult, error) {
	if limit <= 0 {
		limit = constants.JournalDefaultLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT winning_team, scores, finished_at FROM match_results ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []domain.MatchResult
	for rows.Next() {
		var (
			res    domain.MatchResult
			team   int
			scores string
		)
		if err := rows.Scan(&team, &scores, &res.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		if err := json.Unmarshal([]byte(scores), &res.Scores); err != nil {
			return nil, fmt.Errorf("failed to decode scores: %w", err)
		}
		res.WinningTeam = domain.TeamID(team)
		out = append(out, res)
	}
	return out, rows.Err()
}

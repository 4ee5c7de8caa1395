package service

import (
	"context"
	"errors"
	"fmt"
	"shooter-sync/internal/api"
	"shooter-sync/internal/auth"
	"shooter-sync/internal/config"
	"shooter-sync/internal/constants"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/game"
	"shooter-sync/internal/replication"
	"shooter-sync/internal/repository"
	"shooter-sync/internal/world"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrServiceStopped = errors.New("match service stopped")
	ErrUnknownSession = errors.New("unknown session")
)

type JoinResult struct {
	SessionID domain.SessionID
	TeamID    domain.TeamID
	Name      string
	Token     string
}

// Identity is the session a token resolves to.
type Identity struct {
	SessionID domain.SessionID
	TeamID    domain.TeamID
	Name      string
}

type Scoreboard struct {
	Scores       []int
	WinningScore int
	Over         bool
	WinningTeam  domain.TeamID
}

type SessionView struct {
	ID       domain.SessionID
	Name     string
	Team     domain.TeamID
	HP       float64
	MaxHP    float64
	Alive    bool
	Weapons  []string
	Active   int
	Magazine int
	Ammo     int
}

// MatchService runs the authoritative match on a single goroutine. Every
// exported method hands a closure to that goroutine through the inbox, so
// callers on any goroutine see a consistent match.
type MatchService struct {
	match    *game.Match
	inbox    chan func(*game.Match)
	tick     time.Duration
	tokens   *auth.Tokens
	journal  *repository.JournalRepository
	reporter *api.ReportClient
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	pending sync.WaitGroup
}

func NewMatchService(
	cfg *config.Config,
	w *world.World,
	journal *repository.JournalRepository,
	reporter *api.ReportClient,
	tokens *auth.Tokens,
	logger zerolog.Logger,
) (*MatchService, error) {
	s := &MatchService{
		inbox:    make(chan func(*game.Match), constants.ServiceInbox),
		tick:     cfg.TickInterval(),
		tokens:   tokens,
		journal:  journal,
		reporter: reporter,
		logger:   logger.With().Str("component", "match_service").Logger(),
	}

	settings := game.DefaultSettings()
	settings.TeamCount = cfg.TeamCount
	settings.WinningScore = cfg.WinningScore
	settings.MaxHP = cfg.MaxHP
	settings.RespawnDelay = cfg.RespawnDelay
	settings.Loadout = DefaultLoadout
	settings.SpawnPoints, settings.Pickups = defaultArena(cfg.TeamCount)

	m, err := game.NewMatch(settings, game.Deps{
		Entities:    w,
		Aim:         w.Aim,
		Events:      journal,
		Diagnostics: journal,
		Logger:      logger,
		OnGameOver:  s.finish,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	if err := m.AddObserver(replication.Observer{
		ID:    replication.LocalObserver,
		Team:  domain.NoTeam,
		Local: true,
		Sink:  logSink{logger: s.logger},
	}); err != nil {
		return nil, fmt.Errorf("failed to register local observer: %w", err)
	}
	s.match = m
	return s, nil
}

// Start launches the match loop.
func (s *MatchService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	s.logger.Info().Dur("tick", s.tick).Msg("match loop started")
}

// Stop ends the match loop and waits for game-over reports in flight.
func (s *MatchService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("failed to stop match loop: %w", ctx.Err())
	}

	flushed := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
		s.logger.Info().Msg("match loop stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to flush match reports: %w", ctx.Err())
	}
}

func (s *MatchService) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case fn := <-s.inbox:
			fn(s.match)
		case now := <-ticker.C:
			s.match.Tick(now)
			s.match.Pump()
		}
	}
}

// do runs fn on the match goroutine, pumps queued calls and notifications,
// and waits for both to finish. ctx bounds the wait for a free inbox slot
// only: once queued, a task always completes before do returns.
func (s *MatchService) do(ctx context.Context, fn func(*game.Match)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	running, done := s.running, s.done
	s.mu.Unlock()
	if !running {
		return ErrServiceStopped
	}

	finished := make(chan struct{})
	task := func(m *game.Match) {
		defer close(finished)
		fn(m)
		m.Pump()
	}
	select {
	case s.inbox <- task:
	case <-done:
		return ErrServiceStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-done:
		return ErrServiceStopped
	}
}

func (s *MatchService) Join(ctx context.Context, name string, team domain.TeamID) (*JoinResult, error) {
	var res *JoinResult
	err := s.do(ctx, func(m *game.Match) {
		// A caller that gave up while queued gets no token, so it gets no
		// session either.
		if ctx.Err() != nil {
			return
		}
		sess, ok := m.Join(replication.Authority, game.JoinRequest{Name: name, Team: team})
		if !ok {
			return
		}
		res = &JoinResult{SessionID: sess.ID, TeamID: sess.Team, Name: sess.Name}
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to join match")
	}

	token, err := s.tokens.Issue(res.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	res.Token = token
	s.logger.Info().Int("session_id", int(res.SessionID)).Int("team_id", int(res.TeamID)).Msg("player joined")
	return res, nil
}

func (s *MatchService) Leave(ctx context.Context, id domain.SessionID) error {
	found := false
	err := s.do(ctx, func(m *game.Match) {
		found = m.Leave(replication.Authority, id)
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrUnknownSession
	}
	return nil
}

// Authenticate resolves a session token to a live session.
func (s *MatchService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	var who *Identity
	err = s.do(ctx, func(m *game.Match) {
		if sess, ok := m.Session(id); ok {
			who = &Identity{SessionID: sess.ID, TeamID: sess.Team, Name: sess.Name}
		}
	})
	if err != nil {
		return nil, err
	}
	if who == nil {
		return nil, ErrUnknownSession
	}
	return who, nil
}

// Attach routes a session's pushes to sink.
func (s *MatchService) Attach(ctx context.Context, id domain.SessionID, sink domain.PresentationSink) error {
	ok := false
	if err := s.do(ctx, func(m *game.Match) {
		ok = m.Attach(replication.Authority, id, sink)
	}); err != nil {
		return err
	}
	if !ok {
		return ErrUnknownSession
	}
	return nil
}

func (s *MatchService) Detach(ctx context.Context, id domain.SessionID) error {
	return s.do(ctx, func(m *game.Match) { m.Detach(id) })
}

// Release removes the session when sink is still its attached observer and
// reports whether it did. A sink replaced by a later Attach leaves the
// session alone.
func (s *MatchService) Release(ctx context.Context, id domain.SessionID, sink domain.PresentationSink) (bool, error) {
	left := false
	err := s.do(ctx, func(m *game.Match) {
		if m.Attached(id, sink) {
			left = m.Leave(replication.Authority, id)
		}
	})
	return left, err
}

// Intents from clients enter the match as the remote side and are forwarded
// as server calls.

func (s *MatchService) Fire(ctx context.Context, id domain.SessionID, origin, direction domain.Vec3) error {
	return s.do(ctx, func(m *game.Match) {
		m.RequestFire(replication.Remote, game.FireArgs{Session: id, Origin: origin, Direction: direction})
	})
}

func (s *MatchService) SwitchWeapon(ctx context.Context, id domain.SessionID) error {
	return s.do(ctx, func(m *game.Match) { m.SwitchWeapon(replication.Remote, id) })
}

func (s *MatchService) Reload(ctx context.Context, id domain.SessionID) error {
	return s.do(ctx, func(m *game.Match) { m.Reload(replication.Remote, id) })
}

func (s *MatchService) PickUp(ctx context.Context, id domain.SessionID, pickupID string) error {
	return s.do(ctx, func(m *game.Match) {
		m.PickUp(replication.Remote, game.PickupArgs{Session: id, PickupID: pickupID})
	})
}

func (s *MatchService) UseItem(ctx context.Context, id domain.SessionID, index int) error {
	return s.do(ctx, func(m *game.Match) {
		m.UseItem(replication.Remote, game.UseItemArgs{Session: id, Index: index})
	})
}

func (s *MatchService) Damage(ctx context.Context, target domain.SessionID, amount float64) error {
	return s.do(ctx, func(m *game.Match) { m.Damage(replication.Remote, target, amount) })
}

func (s *MatchService) Scoreboard(ctx context.Context) (*Scoreboard, error) {
	var sb Scoreboard
	err := s.do(ctx, func(m *game.Match) {
		st := m.State()
		over, winner := st.Over()
		sb = Scoreboard{Scores: st.Scores(), WinningScore: st.WinningScore(), Over: over, WinningTeam: winner}
	})
	if err != nil {
		return nil, err
	}
	return &sb, nil
}

func (s *MatchService) Sessions(ctx context.Context) ([]SessionView, error) {
	var views []SessionView
	err := s.do(ctx, func(m *game.Match) {
		for _, sess := range m.Sessions() {
			v := SessionView{
				ID:     sess.ID,
				Name:   sess.Name,
				Team:   sess.Team,
				HP:     sess.HP(),
				MaxHP:  sess.MaxHP(),
				Alive:  sess.Alive(),
				Active: sess.ActiveIndex(),
			}
			for _, w := range sess.Weapons() {
				v.Weapons = append(v.Weapons, w.Class)
			}
			b := sess.Bullets()
			v.Magazine, v.Ammo = b.MagazineSize, b.CurrentAmmo
			views = append(views, v)
		}
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *MatchService) Restart(ctx context.Context) error {
	return s.do(ctx, func(m *game.Match) { m.Restart(replication.Authority) })
}

func (s *MatchService) Journal(ctx context.Context, limit int) ([]domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.journal.Recent(ctx, limit)
}

// finish stores and reports a finished match off the match goroutine.
func (s *MatchService) finish(res domain.MatchResult) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), constants.ReportTimeout)
		defer cancel()

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.journal.SaveResult(gCtx, res)
		})
		g.Go(func() error {
			_, err := s.reporter.Report(gCtx, res)
			return err
		})
		if err := g.Wait(); err != nil {
			s.logger.Error().Err(err).Int("winning_team", int(res.WinningTeam)).Msg("failed to finish match")
		}
	}()
}

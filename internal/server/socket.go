package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"shooter-sync/internal/auth"
	"shooter-sync/internal/constants"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/middleware"
	"shooter-sync/internal/protocol"
	"shooter-sync/internal/service"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const SocketPath = "/ws"

var (
	errSlowConsumer = errors.New("send queue full")
	errSuperseded   = errors.New("replaced by a newer connection")
	errUnknownType  = errors.New("unknown message type")
)

// SocketHandler upgrades authenticated requests to websockets and binds each
// connection to the session named by its token. A connection is the
// session's observer: pushes flow out through a socketSink and intents flow
// in as remote calls. A session has at most one live connection: a newer
// one closes the older.
type SocketHandler struct {
	matchSvc     *service.MatchService
	mu           sync.Mutex
	conns        map[domain.SessionID]*socketSink
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       zerolog.Logger
}

func NewSocketHandler(matchSvc *service.MatchService, logger zerolog.Logger) *SocketHandler {
	return &SocketHandler{
		matchSvc: matchSvc,
		conns:    make(map[domain.SessionID]*socketSink),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: constants.SocketPingInterval,
		readTimeout:  constants.SocketReadTimeout,
		writeTimeout: constants.SocketWriteTimeout,
		logger:       logger.With().Str("component", "socket").Logger(),
	}
}

func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	who, err := h.matchSvc.Authenticate(r.Context(), auth.FromRequest(r))
	if err != nil {
		if errors.Is(err, service.ErrServiceStopped) {
			http.Error(w, "match not running", http.StatusServiceUnavailable)
			return
		}
		h.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("socket rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}
	h.serve(conn, who, middleware.GetRequestID(r.Context()))
}

func (h *SocketHandler) serve(conn *websocket.Conn, who *service.Identity, requestID string) {
	id := who.SessionID
	connID := requestID
	if connID == "" {
		connID = uuid.NewString()
	}
	logger := h.logger.With().
		Str("conn_id", connID).
		Int("session_id", int(id)).
		Logger()
	logger.Info().Int("team_id", int(who.TeamID)).Msg("socket connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newSocketSink(constants.SocketSendQueue, logger)
	sink.send(protocol.MsgWelcome, protocol.Welcome{SessionID: id, TeamID: who.TeamID, Name: who.Name})
	if err := h.matchSvc.Attach(ctx, id, sink); err != nil {
		logger.Warn().Err(err).Msg("failed to attach observer")
		conn.Close()
		return
	}
	h.claim(id, sink)
	defer h.unclaim(id, sink)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.writePump(gCtx, conn, sink)
	})
	g.Go(func() error {
		return h.readPump(gCtx, conn, id, sink)
	})
	err := g.Wait()
	logger.Info().Err(err).Msg("socket disconnected")

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer leaveCancel()
	left, err := h.matchSvc.Release(leaveCtx, id, sink)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to leave match")
		return
	}
	if !left {
		logger.Debug().Msg("session kept by a newer connection")
	}
}

// claim makes sink the session's connection and closes the one it replaces.
// It runs after Attach, so the replaced connection no longer owns the
// session's observer when it shuts down.
func (h *SocketHandler) claim(id domain.SessionID, sink *socketSink) {
	h.mu.Lock()
	old := h.conns[id]
	h.conns[id] = sink
	h.mu.Unlock()
	if old != nil {
		old.drop(errSuperseded)
	}
}

func (h *SocketHandler) unclaim(id domain.SessionID, sink *socketSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[id] == sink {
		delete(h.conns, id)
	}
}

func (h *SocketHandler) writePump(ctx context.Context, conn *websocket.Conn, sink *socketSink) error {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case <-sink.dead:
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, sink.reason.Error()))
			return sink.reason
		case msg := <-sink.queue:
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("failed to write message: %w", err)
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("failed to write ping: %w", err)
			}
		}
	}
}

func (h *SocketHandler) readPump(ctx context.Context, conn *websocket.Conn, id domain.SessionID, sink *socketSink) error {
	conn.SetReadLimit(constants.SocketReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		if err := h.dispatch(ctx, id, data); err != nil {
			if errors.Is(err, service.ErrServiceStopped) || ctx.Err() != nil {
				return err
			}
			sink.send(protocol.MsgError, protocol.Error{Message: err.Error()})
		}
	}
}

// dispatch turns one client envelope into a remote intent for the session
// bound to the connection.
func (h *SocketHandler) dispatch(ctx context.Context, id domain.SessionID, data []byte) error {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		return err
	}

	switch env.T {
	case protocol.MsgFire:
		p, err := protocol.DecodePayload[protocol.Fire](env)
		if err != nil {
			return err
		}
		return h.matchSvc.Fire(ctx, id, p.Origin, p.Direction)
	case protocol.MsgSwitchWeapon:
		return h.matchSvc.SwitchWeapon(ctx, id)
	case protocol.MsgReload:
		return h.matchSvc.Reload(ctx, id)
	case protocol.MsgPickup:
		p, err := protocol.DecodePayload[protocol.Pickup](env)
		if err != nil {
			return err
		}
		return h.matchSvc.PickUp(ctx, id, p.PickupID)
	case protocol.MsgUseItem:
		p, err := protocol.DecodePayload[protocol.UseItem](env)
		if err != nil {
			return err
		}
		return h.matchSvc.UseItem(ctx, id, p.Index)
	case protocol.MsgDamage:
		p, err := protocol.DecodePayload[protocol.Damage](env)
		if err != nil {
			return err
		}
		return h.matchSvc.Damage(ctx, p.Target, p.Amount)
	default:
		return fmt.Errorf("%w %q", errUnknownType, env.T)
	}
}

// socketSink encodes pushes into a bounded queue drained by the write pump.
// It is called from the match goroutine and never blocks: when the queue is
// full the connection is marked dead and later pushes are dropped.
type socketSink struct {
	queue  chan []byte
	dead   chan struct{}
	once   sync.Once
	reason error
	logger zerolog.Logger
}

func newSocketSink(size int, logger zerolog.Logger) *socketSink {
	return &socketSink{
		queue:  make(chan []byte, size),
		dead:   make(chan struct{}),
		logger: logger,
	}
}

func (s *socketSink) send(t string, payload any) {
	select {
	case <-s.dead:
		return
	default:
	}

	b, err := protocol.Encode(t, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", t).Msg("failed to encode push")
		return
	}
	select {
	case s.queue <- b:
	default:
		s.logger.Warn().Str("type", t).Msg("send queue full, dropping observer")
		s.drop(errSlowConsumer)
	}
}

// drop marks the connection dead. reason is read only after dead is closed.
func (s *socketSink) drop(reason error) {
	s.once.Do(func() {
		s.reason = reason
		close(s.dead)
	})
}

func (s *socketSink) DamagePercent(id domain.SessionID, fraction float64) {
	s.send(protocol.MsgHP, protocol.HP{SessionID: id, Fraction: fraction})
}

func (s *socketSink) AmmoCount(id domain.SessionID, magazineSize, currentAmmo int) {
	s.send(protocol.MsgAmmo, protocol.Ammo{SessionID: id, Magazine: magazineSize, Ammo: currentAmmo})
}

func (s *socketSink) ScoreTable(scores []int) {
	s.send(protocol.MsgScores, protocol.Scores{Scores: scores})
}

func (s *socketSink) Died(id domain.SessionID) {
	s.send(protocol.MsgDeath, protocol.Death{SessionID: id})
}

func (s *socketSink) Respawned(id domain.SessionID) {
	s.send(protocol.MsgRespawned, protocol.Respawned{SessionID: id})
}

func (s *socketSink) GameOver(winningTeam domain.TeamID, won bool) {
	s.send(protocol.MsgGameOver, protocol.GameOver{WinningTeam: winningTeam, Win: won})
}

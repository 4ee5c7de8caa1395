package replication

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Side names the process an operation executes on.
type Side int

const (
	// Authority is the single process whose mutations are canonical.
	Authority Side = iota
	// Remote is any observer process.
	Remote
)

func (s Side) String() string {
	switch s {
	case Authority:
		return "authority"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

var (
	ErrAuthorityViolation = errors.New("authority violation")
	ErrValidationFailure  = errors.New("validation failure")
	ErrOutOfRangeTeam     = errors.New("team out of range")
	ErrStaleTarget        = errors.New("stale target")
)

// Diagnostic records a rejected operation. Err is one of the sentinel errors
// above.
type Diagnostic struct {
	Err    error
	Op     string
	Detail string
}

type DiagnosticRecorder interface {
	RecordDiagnostic(d Diagnostic)
}

// Gate is the single authority checkpoint every mutating entry point runs
// before touching state. Rejected operations become diagnostics and never
// reach the caller as errors.
type Gate struct {
	logger   zerolog.Logger
	recorder DiagnosticRecorder
}

func NewGate(logger zerolog.Logger, recorder DiagnosticRecorder) *Gate {
	return &Gate{logger: logger, recorder: recorder}
}

// RequireAuthority reports whether side may mutate authoritative state.
func (g *Gate) RequireAuthority(side Side, op string) bool {
	if side == Authority {
		return true
	}
	g.Reject(Diagnostic{Err: ErrAuthorityViolation, Op: op, Detail: "acting side " + side.String()})
	return false
}

// Reject logs and records a diagnostic. Stale targets are expected under
// normal play and log at debug.
func (g *Gate) Reject(d Diagnostic) {
	ev := g.logger.Warn()
	if errors.Is(d.Err, ErrStaleTarget) {
		ev = g.logger.Debug()
	}
	ev.Err(d.Err).Str("op", d.Op).Str("detail", d.Detail).Msg("operation rejected")

	if g.recorder != nil {
		g.recorder.RecordDiagnostic(d)
	}
}

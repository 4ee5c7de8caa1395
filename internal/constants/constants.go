package constants

import "time"

const (
	DefaultTeamCount      = 2
	DefaultWinningScore   = 5
	DefaultMaxHP          = 100.0
	DefaultRespawnDelay   = 5 * time.Second
	DefaultTickRate       = 30
	DefaultMaxAimDistance = 10000.0
	DefaultCharacterClass = "ShooterCharacter"
	DefaultMaxStack       = 99
)

const (
	LocalPlayerName  = "Server Player"
	RemotePlayerName = "Client Player %d"
)

const (
	RequestTimeout  = 10 * time.Second
	ReportTimeout   = 10 * time.Second
	DatabaseTimeout = 5 * time.Second
	TokenTTL        = 12 * time.Hour
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	JournalBuffer     = 1024
	JournalBatchSize  = 64
)

const (
	SocketReadLimit    = 1 << 20
	SocketReadTimeout  = 60 * time.Second
	SocketWriteTimeout = 10 * time.Second
	SocketPingInterval = 25 * time.Second
	SocketSendQueue    = 256
	ServiceInbox       = 256
)

const (
	ShutdownTimeout = 5 * time.Second
	MaxNameLength   = 32
)

const (
	JournalDefaultLimit = 50
	JournalMaxLimit     = 500
)

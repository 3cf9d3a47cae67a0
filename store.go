package interview

import (
	"context"
	"time"
)

// PersonaStore resolves persona identifiers.
type PersonaStore interface {
	Get(ctx context.Context, id string) (*Persona, error)
	List(ctx context.Context) ([]string, error)
}

// ContextProvider returns the formatted setting block for a setting id,
// or an empty string when there is nothing to add.
type ContextProvider interface {
	SettingContext(ctx context.Context, settingID string) (string, error)
}

// NoContext is the ContextProvider used when no setting store is wired.
type NoContext struct{}

func (NoContext) SettingContext(context.Context, string) (string, error) { return "", nil }

// Request log statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Request log fail reasons.
const (
	FailReasonTimeout      = "timeout"
	FailReasonNetworkError = "network_error"
	FailReasonServerError  = "server_error"
	FailReasonClientError  = "client_error"
	FailReasonMaxRetries   = "max_retries_exceeded"
	FailReasonUnknownError = "unknown_error"
)

// RequestLog tracks one Client.Send call across its attempts.
// Only metadata is kept; prompts and answers never leave the session.
type RequestLog struct {
	ID          string
	SessionID   string
	Provider    string
	Schema      SchemaKind
	RetryCount  int
	FinalStatus string
	FailReason  string
	ErrorMsg    string
	Usage       Usage
	LatencyMS   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RequestLogStore persists model request logs.
type RequestLogStore interface {
	AddRequestLog(ctx context.Context, log RequestLog) (*RequestLog, error)
	UpdateRequestLog(ctx context.Context, log RequestLog) error
}

// MigrationRecord tracks a single schema migration.
type MigrationRecord struct {
	Name      string
	Applied   bool
	AppliedAt *time.Time
	Checksum  string
}

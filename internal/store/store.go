// Package store provides the record store backends that imported processes
// are created in.
//
// Every backend implements core.RecordStore. Connection-level failures are
// wrapped with core.ErrNetwork so the import gateway can tell a store that
// is unreachable from one that rejected a single record.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/google/uuid"
)

// Store is a RecordStore with a connection lifecycle.
type Store interface {
	core.RecordStore
	Ping(ctx context.Context) error
	Close() error
}

// Open connects the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryStore(), nil
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg)
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, cfg.EnsureSchema)
	case config.BackendMySQL:
		return OpenMySQL(ctx, cfg.MySQLDSN, cfg.EnsureSchema)
	case config.BackendDynamoDB:
		return OpenDynamo(ctx, cfg.DynamoTable, cfg.AWSRegion)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// StoredRecord is a ProcessRecord as persisted, stamped with the import it
// came from.
type StoredRecord struct {
	ID string `json:"id"`
	core.ProcessRecord
	ProjectID   string    `json:"project_id"`
	SessionID   string    `json:"session_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// newStoredRecord assigns an id and copies the import context from ctx.
func newStoredRecord(ctx context.Context, rec core.ProcessRecord) StoredRecord {
	ic, _ := core.ImportContextFrom(ctx)
	return StoredRecord{
		ID:            uuid.NewString(),
		ProcessRecord: rec,
		ProjectID:     ic.ProjectID,
		SessionID:     ic.SessionID,
		RequestedBy:   ic.RequestedBy,
		CreatedAt:     time.Now().UTC(),
	}
}

// networkError marks err as a transport failure.
func networkError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrNetwork, op, err)
}

// Package store implements the reference intent-store backend: the SQL
// table the Resource Dispatcher's push path writes to and the Reconciler
// reads from to build a DesiredOperationalUniverse.
//
// It is modeled directly on the teacher's internal/storage/dolt.DoltStore:
// the same retry-wrapped exec/query helpers, the same OTel tracer+meter
// globals registered at init time against the (possibly still no-op) global
// provider, and the same server-mode-only retry gate. Where the teacher
// talks to Dolt specifically, this backend is driver-agnostic SQL, wired
// through dolthub/driver for an embedded, version-controlled store and
// go-sql-driver/mysql for a server-mode one.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

var tracer = otel.Tracer("github.com/gaurav-dalvi/aci-integration-module/store")

var storeMetrics struct {
	retryCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/gaurav-dalvi/aci-integration-module/store")
	storeMetrics.retryCount, _ = m.Int64Counter("aid.store.retry_count",
		metric.WithDescription("intent-store SQL operations retried due to transient errors"),
		metric.WithUnit("{retry}"),
	)
}

const schema = `
CREATE TABLE IF NOT EXISTS intents (
	tenant_id      VARCHAR(255) NOT NULL,
	resource_type  VARCHAR(255) NOT NULL,
	resource_id    VARCHAR(1024) NOT NULL,
	content_hash   VARCHAR(64) NOT NULL,
	sync_state     VARCHAR(32) NOT NULL DEFAULT 'sync_unknown',
	last_error     TEXT,
	updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (tenant_id, resource_type, resource_id)
);
CREATE TABLE IF NOT EXISTS resources (
	tenant_id       VARCHAR(255) NOT NULL,
	key_path        VARCHAR(1024) NOT NULL,
	resource_type   VARCHAR(255) NOT NULL,
	identity_json   TEXT NOT NULL,
	attributes_json TEXT,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (tenant_id, key_path)
);
`

// Store is the SQL-backed intent store. It records, per tenant and object,
// the last content hash the Dispatcher pushed and the SyncState the
// Reconciler should report back to the operational universe.
type Store struct {
	db         *sql.DB
	driverName string
	serverMode bool
	mu         sync.RWMutex
}

// Config selects how a Store connects.
type Config struct {
	// DriverName is "dolt" for the embedded, version-controlled backend or
	// "mysql" for server mode (go-sql-driver/mysql, no CGO required).
	DriverName string
	// DSN is the driver-specific data source name.
	DSN string
	// ServerMode enables the retry wrapper, mirroring the teacher: the
	// embedded driver already retries internally, so only server mode
	// needs explicit application-level retry.
	ServerMode bool
}

// Open connects to the configured backend and ensures the intents and
// resources tables exist.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.DriverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", cfg.DriverName, err)
	}

	s := &Store{db: db, driverName: cfg.DriverName, serverMode: cfg.ServerMode}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	return bo
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, substr := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection",
		"gone away",
		"i/o timeout",
	} {
		if strings.Contains(errStr, substr) {
			return true
		}
	}
	return false
}

// withRetry executes op with retry for transient errors, active only in
// server mode — the embedded driver has its own internal retry.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	if !s.serverMode {
		return op()
	}
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(newRetryBackoff(), ctx))
	if attempts > 1 {
		storeMetrics.retryCount.Add(ctx, int64(attempts-1))
	}
	return err
}

func (s *Store) spanAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", s.driverName),
		attribute.Bool("db.server_mode", s.serverMode),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Intent is one stored row: the last known content hash for an object and
// its current sync state.
type Intent struct {
	Tenant       types.TenantID
	ObjectID     types.ObjectID
	ContentHash  string
	State        types.SyncState
	LastError    string
}

// UpsertIntent writes or updates the sync-state bookkeeping row for an
// object: the content hash last pushed for it and the outcome the
// Reconciler should report back. This is distinct from Upsert/Remove, which
// implement dispatcher.Manager and store the resource's actual content.
func (s *Store) UpsertIntent(ctx context.Context, intent Intent) error {
	ctx, span := tracer.Start(ctx, "store.upsert", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.operation", "upsert"))...))

	err := s.withRetry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO intents (tenant_id, resource_type, resource_id, content_hash, sync_state, last_error, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON DUPLICATE KEY UPDATE
				content_hash = VALUES(content_hash),
				sync_state = VALUES(sync_state),
				last_error = VALUES(last_error),
				updated_at = CURRENT_TIMESTAMP
		`, string(intent.Tenant), intent.ObjectID.Type, intent.ObjectID.Identity, intent.ContentHash, intent.State.String(), intent.LastError)
		return execErr
	})
	endSpan(span, err)
	return err
}

// RemoveIntent deletes the sync-state bookkeeping row for an object.
func (s *Store) RemoveIntent(ctx context.Context, tenant types.TenantID, id types.ObjectID) error {
	ctx, span := tracer.Start(ctx, "store.remove", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.operation", "remove"))...))

	err := s.withRetry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			"DELETE FROM intents WHERE tenant_id = ? AND resource_type = ? AND resource_id = ?",
			string(tenant), id.Type, id.Identity)
		return execErr
	})
	endSpan(span, err)
	return err
}

// MarkState updates only the sync_state/last_error columns, without
// touching the recorded content hash. MarkSynced and MarkSyncError go
// through it first.
func (s *Store) MarkState(ctx context.Context, tenant types.TenantID, id types.ObjectID, state types.SyncState, lastErr string) error {
	ctx, span := tracer.Start(ctx, "store.mark_state", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.operation", "mark_state"))...))

	err := s.withRetry(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			"UPDATE intents SET sync_state = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE tenant_id = ? AND resource_type = ? AND resource_id = ?",
			state.String(), lastErr, string(tenant), id.Type, id.Identity)
		if execErr != nil {
			return execErr
		}
		n, rowsErr := res.RowsAffected()
		if rowsErr != nil {
			return rowsErr
		}
		if n == 0 {
			return errNoSuchIntent
		}
		return nil
	})
	endSpan(span, err)
	return err
}

var errNoSuchIntent = errors.New("store: no intent row for object")

// MarkSynced implements universe.Source's set_resource_sync_synced (§6):
// the object's most recent push succeeded.
func (s *Store) MarkSynced(ctx context.Context, tenant types.TenantID, id types.ObjectID) error {
	return s.markOrCreate(ctx, tenant, id, types.SyncSynced, "")
}

// MarkSyncError implements universe.Source's set_resource_sync_error(msg)
// (§6): the object was surrendered to the Failure Ledger and must carry a
// human-readable reason (§4.2, §7).
func (s *Store) MarkSyncError(ctx context.Context, tenant types.TenantID, id types.ObjectID, reason string) error {
	return s.markOrCreate(ctx, tenant, id, types.SyncError, reason)
}

// markOrCreate updates an existing intent row's state, or creates one if
// this is the first time the object has been observed — a push can succeed
// or fail before any prior UpsertIntent call recorded a content hash for it.
func (s *Store) markOrCreate(ctx context.Context, tenant types.TenantID, id types.ObjectID, state types.SyncState, reason string) error {
	err := s.MarkState(ctx, tenant, id, state, reason)
	if errors.Is(err, errNoSuchIntent) {
		return s.UpsertIntent(ctx, Intent{Tenant: tenant, ObjectID: id, State: state, LastError: reason})
	}
	return err
}

// GetIntent returns the stored sync-state row for an object, if any.
func (s *Store) GetIntent(ctx context.Context, tenant types.TenantID, id types.ObjectID) (Intent, bool, error) {
	ctx, span := tracer.Start(ctx, "store.get", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.operation", "get"))...))
	defer span.End()

	var intent Intent
	var state string
	var lastErr sql.NullString
	err := s.withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT tenant_id, resource_type, resource_id, content_hash, sync_state, last_error FROM intents WHERE tenant_id = ? AND resource_type = ? AND resource_id = ?",
			string(tenant), id.Type, id.Identity,
		).Scan(&intent.Tenant, &intent.ObjectID.Type, &intent.ObjectID.Identity, &intent.ContentHash, &state, &lastErr)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Intent{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Intent{}, false, err
	}
	intent.LastError = lastErr.String
	intent.State = parseSyncState(state)
	return intent, true, nil
}

func parseSyncState(s string) types.SyncState {
	switch s {
	case types.SyncSynced.String():
		return types.SyncSynced
	case types.SyncError.String():
		return types.SyncError
	default:
		return types.SyncUnknown
	}
}

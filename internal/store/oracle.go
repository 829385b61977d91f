package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// TxOracle replays one recorded transaction's observations through the
// oracle interface. Missing rows report ErrInapplicable, matching what
// the live oracle answered when the recording was made; database
// failures report ErrUnavailable so rules degrade to a logged skip.
//
// Safe for concurrent use: all queries are reads against one
// transaction's frozen rows.
type TxOracle struct {
	store *Store
	txID  string
}

// Oracle returns a replay oracle scoped to one recorded transaction.
func (s *Store) Oracle(txID string) *TxOracle {
	return &TxOracle{store: s, txID: txID}
}

var _ oracle.Oracle = (*TxOracle)(nil)

// ResourceMetric implements oracle.Oracle.
func (o *TxOracle) ResourceMetric(ctx context.Context, resource wire.Address, snap oracle.Snapshot, kind oracle.MetricKind) (*big.Int, error) {
	row := o.store.db.QueryRowContext(ctx, `
		SELECT value FROM resource_metrics
		WHERE tx_id = ? AND snapshot = ? AND resource = ? AND metric = ?
	`, o.txID, snap.String(), resource.String(), kind.String())
	return scanMetric(row, kind)
}

// PrincipalMetric implements oracle.Oracle.
func (o *TxOracle) PrincipalMetric(ctx context.Context, resource, principal wire.Address, snap oracle.Snapshot, kind oracle.MetricKind) (*big.Int, error) {
	row := o.store.db.QueryRowContext(ctx, `
		SELECT value FROM principal_metrics
		WHERE tx_id = ? AND snapshot = ? AND resource = ? AND principal = ? AND metric = ?
	`, o.txID, snap.String(), resource.String(), principal.String(), kind.String())
	return scanMetric(row, kind)
}

// PrincipalHealth implements oracle.Oracle. A transaction recorded
// without a health row for the pair replays as HealthInapplicable,
// which sends rules down the metric fallback path.
func (o *TxOracle) PrincipalHealth(ctx context.Context, resource, principal wire.Address, snap oracle.Snapshot) (oracle.Health, error) {
	var healthy int
	row := o.store.db.QueryRowContext(ctx, `
		SELECT healthy FROM health_reports
		WHERE tx_id = ? AND snapshot = ? AND resource = ? AND principal = ?
	`, o.txID, snap.String(), resource.String(), principal.String())
	if err := row.Scan(&healthy); err != nil {
		if err == sql.ErrNoRows {
			return oracle.HealthInapplicable, nil
		}
		return oracle.HealthInapplicable, fmt.Errorf("%w: query health: %v", oracle.ErrUnavailable, err)
	}
	if healthy == 1 {
		return oracle.Healthy, nil
	}
	return oracle.Unhealthy, nil
}

// Controllers implements oracle.Oracle.
func (o *TxOracle) Controllers(ctx context.Context, principal wire.Address, snap oracle.Snapshot) ([]wire.Address, error) {
	rows, err := o.store.db.QueryContext(ctx, `
		SELECT controller FROM controllers
		WHERE tx_id = ? AND snapshot = ? AND principal = ?
		ORDER BY seq ASC
	`, o.txID, snap.String(), principal.String())
	if err != nil {
		return nil, fmt.Errorf("%w: query controllers: %v", oracle.ErrUnavailable, err)
	}
	defer rows.Close()

	var controllers []wire.Address
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan controller: %v", oracle.ErrUnavailable, err)
		}
		addr, err := wire.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: controller: %v", oracle.ErrUnavailable, err)
		}
		controllers = append(controllers, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate controllers: %v", oracle.ErrUnavailable, err)
	}
	return controllers, nil
}

// HasCode implements oracle.Oracle.
func (o *TxOracle) HasCode(ctx context.Context, target wire.Address, snap oracle.Snapshot) (bool, error) {
	var one int
	row := o.store.db.QueryRowContext(ctx, `
		SELECT 1 FROM code_presence
		WHERE tx_id = ? AND snapshot = ? AND address = ?
	`, o.txID, snap.String(), target.String())
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("%w: query code presence: %v", oracle.ErrUnavailable, err)
	}
	return true, nil
}

// Events implements oracle.Oracle. Events replay in recorded order.
func (o *TxOracle) Events(ctx context.Context) ([]oracle.Event, error) {
	rows, err := o.store.db.QueryContext(ctx, `
		SELECT emitter, topics, data FROM events
		WHERE tx_id = ?
		ORDER BY seq ASC
	`, o.txID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []oracle.Event
	for rows.Next() {
		var (
			emitter, topics string
			data            []byte
		)
		if err := rows.Scan(&emitter, &topics, &data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev := oracle.Event{Data: data}
		if ev.Emitter, err = wire.ParseAddress(emitter); err != nil {
			return nil, fmt.Errorf("event emitter: %w", err)
		}
		if ev.Topics, err = unmarshalTopics(topics); err != nil {
			return nil, fmt.Errorf("event topics: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanMetric reads one metric value, mapping a missing row to
// ErrInapplicable and a corrupt value to ErrUnavailable.
func scanMetric(row *sql.Row, kind oracle.MetricKind) (*big.Int, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, oracle.ErrInapplicable
		}
		return nil, fmt.Errorf("%w: query %s: %v", oracle.ErrUnavailable, kind, err)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s: corrupt value %q", oracle.ErrUnavailable, kind, raw)
	}
	return v, nil
}

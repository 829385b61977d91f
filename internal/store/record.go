package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// TransactionRecord is one recorded transaction envelope.
type TransactionRecord struct {
	ID   string
	From wire.Address
	To   wire.Address
	Data []byte
}

// RecordTransaction inserts a transaction envelope. Uses ON
// CONFLICT(id) DO NOTHING for idempotency; re-recording the same
// transaction is silently ignored.
func (s *Store) RecordTransaction(ctx context.Context, rec TransactionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, from_addr, to_addr, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.From.String(), rec.To.String(), rec.Data)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// ReadTransaction retrieves a recorded transaction envelope by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadTransaction(ctx context.Context, id string) (TransactionRecord, error) {
	var (
		rec      TransactionRecord
		from, to string
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, from_addr, to_addr, data FROM transactions WHERE id = ?
	`, id)
	if err := row.Scan(&rec.ID, &from, &to, &rec.Data); err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, fmt.Errorf("read transaction %s: %w", id, err)
	}

	var err error
	if rec.From, err = wire.ParseAddress(from); err != nil {
		return rec, fmt.Errorf("read transaction %s: from: %w", id, err)
	}
	if rec.To, err = wire.ParseAddress(to); err != nil {
		return rec, fmt.Errorf("read transaction %s: to: %w", id, err)
	}
	return rec, nil
}

// RecordResourceMetric stores one resource-level observation. Replaces
// any previous observation of the same metric so that a re-recording
// with fresher data wins.
func (s *Store) RecordResourceMetric(ctx context.Context, txID string, resource wire.Address, snap oracle.Snapshot, kind oracle.MetricKind, value *big.Int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_metrics (tx_id, snapshot, resource, metric, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tx_id, snapshot, resource, metric) DO UPDATE SET value = excluded.value
	`, txID, snap.String(), resource.String(), kind.String(), value.String())
	if err != nil {
		return fmt.Errorf("record resource metric: %w", err)
	}
	return nil
}

// RecordPrincipalMetric stores one principal-scoped observation.
func (s *Store) RecordPrincipalMetric(ctx context.Context, txID string, resource, principal wire.Address, snap oracle.Snapshot, kind oracle.MetricKind, value *big.Int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principal_metrics (tx_id, snapshot, resource, principal, metric, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_id, snapshot, resource, principal, metric) DO UPDATE SET value = excluded.value
	`, txID, snap.String(), resource.String(), principal.String(), kind.String(), value.String())
	if err != nil {
		return fmt.Errorf("record principal metric: %w", err)
	}
	return nil
}

// RecordHealth stores a direct health verdict. Only definite verdicts
// are recorded; a resource that answered HealthInapplicable gets no
// row, and replay reproduces the metric fallback.
func (s *Store) RecordHealth(ctx context.Context, txID string, resource, principal wire.Address, snap oracle.Snapshot, healthy bool) error {
	flag := 0
	if healthy {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_reports (tx_id, snapshot, resource, principal, healthy)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tx_id, snapshot, resource, principal) DO UPDATE SET healthy = excluded.healthy
	`, txID, snap.String(), resource.String(), principal.String(), flag)
	if err != nil {
		return fmt.Errorf("record health: %w", err)
	}
	return nil
}

// RecordControllers stores a principal's controller set at a snapshot.
// The recorded order is preserved on replay.
func (s *Store) RecordControllers(ctx context.Context, txID string, principal wire.Address, snap oracle.Snapshot, controllers []wire.Address) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record controllers: begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, c := range controllers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO controllers (tx_id, snapshot, principal, controller, seq)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(tx_id, snapshot, principal, controller) DO NOTHING
		`, txID, snap.String(), principal.String(), c.String(), i)
		if err != nil {
			return fmt.Errorf("record controllers: %w", err)
		}
	}
	return tx.Commit()
}

// RecordCode marks an address as holding code at a snapshot. Absence
// of a row replays as "no code".
func (s *Store) RecordCode(ctx context.Context, txID string, address wire.Address, snap oracle.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO code_presence (tx_id, snapshot, address)
		VALUES (?, ?, ?)
		ON CONFLICT(tx_id, snapshot, address) DO NOTHING
	`, txID, snap.String(), address.String())
	if err != nil {
		return fmt.Errorf("record code: %w", err)
	}
	return nil
}

// RecordEvent appends one event to the transaction's log. Sequence
// numbers define replay order and must be unique per transaction.
func (s *Store) RecordEvent(ctx context.Context, txID string, seq int, ev oracle.Event) error {
	topics, err := marshalTopics(ev.Topics)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (tx_id, seq, emitter, topics, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tx_id, seq) DO NOTHING
	`, txID, seq, ev.Emitter.String(), topics, ev.Data)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// marshalTopics encodes event topics as a JSON array of hex words.
func marshalTopics(topics []wire.Word) (string, error) {
	strs := make([]string, len(topics))
	for i, t := range topics {
		strs[i] = t.String()
	}
	b, err := json.Marshal(strs)
	if err != nil {
		return "", fmt.Errorf("marshal topics: %w", err)
	}
	return string(b), nil
}

func unmarshalTopics(raw string) ([]wire.Word, error) {
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}
	topics := make([]wire.Word, len(strs))
	for i, s := range strs {
		w, err := wire.ParseWord(s)
		if err != nil {
			return nil, fmt.Errorf("unmarshal topics: %w", err)
		}
		topics[i] = w
	}
	return topics, nil
}

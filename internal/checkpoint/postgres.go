package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"docsage/internal/pipeline"
)

// PostgresStore keeps one JSON snapshot per thread in the checkpoints table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Load(ctx context.Context, threadID string) (pipeline.State, bool, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE thread_id = $1`, threadID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.State{}, false, nil
	}
	if err != nil {
		return pipeline.State{}, false, fmt.Errorf("load checkpoint: %w", err)
	}

	var s pipeline.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return pipeline.State{}, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	return s, true, nil
}

func (p *PostgresStore) Save(ctx context.Context, threadID string, s pipeline.State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, state, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (thread_id)
		 DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		threadID, raw,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Package checkpoint persists pipeline state snapshots keyed by thread ID.
// Chat threads load their prior state here to get multi-turn memory that
// survives restarts; document runs save their final state for auditing.
package checkpoint

import (
	"context"

	"docsage/internal/pipeline"
)

type Store interface {
	// Load returns the saved state for the thread. The boolean reports
	// whether a checkpoint existed; a missing thread is not an error.
	Load(ctx context.Context, threadID string) (pipeline.State, bool, error)
	// Save overwrites the thread's checkpoint with a snapshot of s.
	Save(ctx context.Context, threadID string, s pipeline.State) error
}

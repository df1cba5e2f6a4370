package port

import "filehash/internal/domain"

// BuildStore keeps state between runs: build snapshots and cached rewrites.
// It never holds resolution state; every build starts a fresh registry.
type BuildStore interface {
	SaveSnapshot(s domain.Snapshot) error

	// LatestSnapshots returns up to n snapshots, newest first.
	LatestSnapshots(n int) ([]domain.Snapshot, error)

	GetSnapshot(id string) (domain.Snapshot, error)

	// GetRewrite returns cached rewritten code for a content key.
	GetRewrite(key string) (string, bool, error)

	PutRewrite(key, code string) error

	Close() error
}

package usecase

import (
	"errors"
	"fmt"
	"sort"

	"filehash/internal/domain"
	"filehash/internal/port"
)

// ErrNoHistory is returned when fewer than two snapshots exist.
var ErrNoHistory = errors.New("need at least two recorded builds to diff")

// DiffUseCase compares recorded builds.
type DiffUseCase struct {
	store port.BuildStore
}

func NewDiffUseCase(store port.BuildStore) *DiffUseCase {
	return &DiffUseCase{store: store}
}

// Latest compares the newest snapshot with the one before it.
func (u *DiffUseCase) Latest() (domain.SnapshotDiff, error) {
	snaps, err := u.store.LatestSnapshots(2)
	if err != nil {
		return domain.SnapshotDiff{}, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(snaps) < 2 {
		return domain.SnapshotDiff{}, ErrNoHistory
	}
	return DiffSnapshots(snaps[1], snaps[0]), nil
}

// Between compares two snapshots by ID.
func (u *DiffUseCase) Between(fromID, toID string) (domain.SnapshotDiff, error) {
	from, err := u.store.GetSnapshot(fromID)
	if err != nil {
		return domain.SnapshotDiff{}, err
	}
	to, err := u.store.GetSnapshot(toID)
	if err != nil {
		return domain.SnapshotDiff{}, err
	}
	return DiffSnapshots(from, to), nil
}

// DiffSnapshots lists the logical names added, removed, or pointing at a new
// file between two builds. Results are sorted by name.
func DiffSnapshots(from, to domain.Snapshot) domain.SnapshotDiff {
	d := domain.SnapshotDiff{From: from.ID, To: to.ID}

	for name, file := range to.Lookup {
		old, ok := from.Lookup[name]
		switch {
		case !ok:
			d.Added = append(d.Added, name)
		case old != file:
			d.Rehashed = append(d.Rehashed, domain.RehashEntry{Name: name, Old: old, New: file})
		}
	}
	for name := range from.Lookup {
		if _, ok := to.Lookup[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Slice(d.Rehashed, func(i, j int) bool { return d.Rehashed[i].Name < d.Rehashed[j].Name })
	return d
}

package cli

import (
	"fmt"
	"os"

	"filehash/config"
	"filehash/internal/adapter/store"
)

// openState opens the build state database, creating it when asked, and
// brings its schema up to date.
func openState(dir string, cfg *config.Config, create bool) (*store.BoltStore, error) {
	dbPath := config.StateDBPath(dir)
	if !create {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("no build state found. Run 'filehash apply' first")
		}
	}

	if err := config.EnsureStateDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create .filehash directory: %w", err)
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open build state: %w", err)
	}

	note, err := st.Prepare(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to prepare build state: %w", err)
	}
	if note != "" {
		logger := GetLogger()
		logger.Info().Str("reason", note).Msg("build state updated")
	}
	return st, nil
}

package port

import (
	"context"

	"filehash/internal/domain"
)

// Bundler produces a chunk graph by running a build.
type Bundler interface {
	Build(ctx context.Context) (domain.Bundle, error)
}

package images

import (
	"context"
	"fmt"

	"microblog/internal/config"
)

// LocalURLPrefix is where the router serves the local image directory.
const LocalURLPrefix = "/uploads"

// NewStore builds the image store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg config.ImagesConfig) (Store, error) {
	switch cfg.Backend {
	case config.ImageBackendS3:
		return NewS3Store(ctx, cfg)
	case config.ImageBackendLocal, "":
		return NewLocalStore(cfg.LocalDir, LocalURLPrefix)
	default:
		return nil, fmt.Errorf("unknown image backend %q", cfg.Backend)
	}
}

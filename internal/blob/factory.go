package blob

import (
	"context"
	"fmt"

	"ehscore/internal/infra/blob/fs"
	"ehscore/internal/infra/blob/memory"
	"ehscore/internal/infra/blob/s3"
)

// S3Config holds bucket settings for DriverS3.
type S3Config = s3.Config

// Config selects and parameterises a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the configured store. An empty driver selects the filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

package cache

import (
	"context"
	"fmt"

	"github.com/uvtools/uvcache/internal/config"
	"github.com/uvtools/uvcache/pkg/errors"
	"github.com/uvtools/uvcache/pkg/types"
)

// NewTierFromConfig constructs the active tier described by the
// configuration, wrapping it with the LRU front when tiered mode is enabled
func NewTierFromConfig(ctx context.Context, cfg *config.Configuration) (types.Tier, error) {
	var tier types.Tier

	switch cfg.Cache.ActiveTier {
	case "memory":
		tier = NewMemoryTier(cfg.Memory.MaxEntries)

	case "disk":
		maxFileSize, err := config.ParseSize(cfg.Disk.MaxFileSize)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "invalid disk max_file_size", err)
		}
		cleanupTrigger, err := config.ParseSize(cfg.Disk.AutoCleanupTriggerSize)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "invalid disk auto_cleanup_trigger_size", err)
		}

		tier, err = NewDiskTier(&DiskTierConfig{
			Directory:          cfg.Disk.Directory,
			Compression:        cfg.Disk.Compression,
			MaxFileSize:        maxFileSize,
			CleanupTriggerSize: cleanupTrigger,
			IndexFile:          cfg.Disk.IndexFile,
			Expiry:             cfg.Cache.Expiry,
		})
		if err != nil {
			return nil, err
		}

	case "s3":
		var err error
		tier, err = NewS3Tier(ctx, &S3TierConfig{
			Bucket:           cfg.S3.Bucket,
			Prefix:           cfg.S3.Prefix,
			Region:           cfg.S3.Region,
			Endpoint:         cfg.S3.Endpoint,
			ForcePathStyle:   cfg.S3.ForcePathStyle,
			AccessKeyID:      cfg.S3.AccessKeyID,
			SecretAccessKey:  cfg.S3.SecretAccessKey,
			Compression:      cfg.S3.Compression,
			OperationTimeout: cfg.Cache.OperationTimeout,
		})
		if err != nil {
			return nil, err
		}

	case "redis":
		var err error
		tier, err = NewRedisTier(ctx, &RedisTierConfig{
			Address:          cfg.Redis.Address,
			Password:         cfg.Redis.Password,
			DB:               cfg.Redis.DB,
			KeyPrefix:        cfg.Redis.KeyPrefix,
			Expiry:           cfg.Cache.Expiry,
			OperationTimeout: cfg.Cache.OperationTimeout,
		})
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.NewError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown tier: %s", cfg.Cache.ActiveTier))
	}

	if cfg.Tiered.Enabled {
		return NewTieredTier(tier, cfg.Tiered.FrontEntries)
	}
	return tier, nil
}

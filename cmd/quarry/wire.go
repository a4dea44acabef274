package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/quarrysearch/quarry/config"
	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/filestore"
	"github.com/quarrysearch/quarry/index"
	"github.com/quarrysearch/quarry/indexwriter"
	"github.com/quarrysearch/quarry/schema"
)

// backend bundles the storage and messaging implementations a command runs
// against.
type backend struct {
	dirs    index.DirectoryFactory
	schemas schema.Loader
	bucket  indexwriter.ObjectBucket
	queue   indexwriter.Queue
	stores  func(indexID string) filestore.FileStore
}

// newBackend builds the backend selected by cfg. A configured data dir means
// local filesystem directories; otherwise indexes live in the transactional
// store, one store id per index.
func newBackend(ctx context.Context, cfg config.Config, local bool) (*backend, error) {
	if cfg.SchemaConfigPath == "" {
		return nil, fmt.Errorf("%s must point at the schema configuration", config.EnvSchemaConfig)
	}
	schemas, err := schema.NewProviderFromFile(cfg.SchemaConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load schema config: %w", err)
	}

	b := &backend{schemas: schemas}

	if local {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("%s must be set in local mode", config.EnvDataDir)
		}
		b.dirs = localDirs(cfg.DataDir)
		b.bucket = indexwriter.NewMemoryBucket()
		b.queue = indexwriter.NewMemoryQueue()
		return b, nil
	}

	if err := cfg.ValidateRemote(); err != nil {
		return nil, err
	}
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("%s must be set", config.EnvQueueURL)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%s must be set", config.EnvBucket)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if cfg.DataDir != "" {
		b.dirs = localDirs(cfg.DataDir)
	} else {
		ddb := dynamodb.NewFromConfig(awsCfg)
		b.stores = func(indexID string) filestore.FileStore {
			return filestore.NewDynamoStore(ddb, cfg.TableName, indexID)
		}
		b.dirs = func(indexID string) (directory.Directory, error) {
			return directory.NewStoreDirectory(b.stores(indexID)), nil
		}
	}

	b.bucket = indexwriter.NewS3Bucket(s3.NewFromConfig(awsCfg), cfg.Bucket, "batches")
	b.queue = indexwriter.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.QueueURL)
	return b, nil
}

func localDirs(root string) index.DirectoryFactory {
	return func(indexID string) (directory.Directory, error) {
		return directory.NewLocalDirectory(filepath.Join(root, indexID))
	}
}

func (b *backend) provider(logger *slog.Logger) *index.Provider {
	return index.NewProvider(b.dirs, b.schemas, logger)
}

// Package config holds the environment-driven application configuration.
package config

import (
	"fmt"
	"os"
)

// Environment variable names understood by Load.
const (
	EnvTableName    = "QUARRY_TABLE_NAME"
	EnvQueueURL     = "QUARRY_QUEUE_URL"
	EnvBucket       = "QUARRY_BUCKET"
	EnvDataDir      = "QUARRY_DATA_DIR"
	EnvSchemaConfig = "QUARRY_SCHEMA_CONFIG"
	EnvListenAddr   = "QUARRY_LISTEN_ADDR"
)

// Config carries the settings shared by the serve, worker and stats commands.
type Config struct {
	// TableName is the DynamoDB table backing the durable file store.
	TableName string
	// QueueURL is the SQS FIFO queue carrying writer messages.
	QueueURL string
	// Bucket is the object bucket holding batch payloads.
	Bucket string
	// DataDir is the shared mount root for the local directory backend.
	// When set, indexes live on the mounted filesystem instead of the
	// transactional store.
	DataDir string
	// SchemaConfigPath points at the JSON schema configuration document.
	SchemaConfigPath string
	// ListenAddr is the HTTP listen address for the serve command.
	ListenAddr string
}

// Load reads the configuration from the environment. Values may be
// overridden afterwards by command flags.
func Load() Config {
	return Config{
		TableName:        os.Getenv(EnvTableName),
		QueueURL:         os.Getenv(EnvQueueURL),
		Bucket:           os.Getenv(EnvBucket),
		DataDir:          os.Getenv(EnvDataDir),
		SchemaConfigPath: os.Getenv(EnvSchemaConfig),
		ListenAddr:       listenAddr(),
	}
}

func listenAddr() string {
	if addr := os.Getenv(EnvListenAddr); addr != "" {
		return addr
	}
	return ":8080"
}

// ValidateRemote checks the settings required by the remote store backend.
func (c Config) ValidateRemote() error {
	if c.DataDir != "" {
		return nil
	}
	if c.TableName == "" {
		return fmt.Errorf("config: %s must be set when no data dir is configured", EnvTableName)
	}
	return nil
}

// Package config holds the settings of one storage connection, bound from the adapter.storage section.
package config

import (
	"fmt"

	coreConfig "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // "local" or "gcs".
	BucketName      string `yaml:"bucket_name"`      // Default bucket when a call passes none.
	CredentialsFile string `yaml:"credentials_file"` // Service account key for GCS. Empty uses the default credentials.
	Endpoint        string `yaml:"endpoint"`         // GCS endpoint override, e.g. an emulator. Disables authentication.
	BaseDir         string `yaml:"base_dir"`         // Root directory of the local adapter.
}

// Lookup binds the adapter.storage.<name> section of cfg.
func Lookup(cfg *coreConfig.Config, name string) (StorageConfig, error) {
	var storageCfg StorageConfig
	found, err := configbinder.BindSection(cfg.Section("storage"), name, &storageCfg)
	if err != nil {
		return storageCfg, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	if !found {
		return storageCfg, fmt.Errorf("storage configuration '%s' not found under adapter.storage", name)
	}
	return storageCfg, nil
}

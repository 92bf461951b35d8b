/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hyperledger-labs/globalconf/common/utils"
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger/fabric-lib-go/bccsp"
	"github.com/pkg/errors"
)

// LocalConfig controls the configuration of a globalconf node.
// Every time the node starts, it is expected to load this file.
type LocalConfig struct {
	// GeneralConfig holds settings shared by all commands
	GeneralConfig GeneralConfig `yaml:"General,omitempty"`
	// Registry locates the database the shared parameters are assembled from
	Registry RegistryConfig `yaml:"Registry,omitempty"`
	// Directory configures the configuration directory documents are published into
	Directory DirectoryConfig `yaml:"Directory,omitempty"`
	// Generation controls the periodic generation of shared parameters
	Generation GenerationConfig `yaml:"Generation,omitempty"`
	// Ledger locates the record of published generations
	Ledger LedgerConfig `yaml:"Ledger,omitempty"`
	// Monitoring configures the metrics and health endpoint
	Monitoring MonitoringConfig `yaml:"Monitoring,omitempty"`
}

type GeneralConfig struct {
	// LogSpec controls the logging level of the node
	LogSpec string `yaml:"LogSpec,omitempty"`
}

type RegistryConfig struct {
	// Path is the SQLite database file
	Path string `yaml:"Path,omitempty"`
}

type DirectoryConfig struct {
	// Root is the configuration directory, holding one subdirectory per instance
	Root string `yaml:"Root,omitempty"`
	// SchemaVersion is the version stored documents must conform to
	SchemaVersion int `yaml:"SchemaVersion,omitempty"`
	// Cache enables caching of validation outcomes by content digest
	Cache bool `yaml:"Cache,omitempty"`
}

type GenerationConfig struct {
	// Interval is the time between two generations
	Interval time.Duration `yaml:"Interval,omitempty"`
	// Validity is how long a published document stays valid
	Validity time.Duration `yaml:"Validity,omitempty"`
	// Parallel queries the registry concurrently
	Parallel bool `yaml:"Parallel,omitempty"`
	// HashAlgorithm is the fingerprint algorithm for authentication certificates
	HashAlgorithm string `yaml:"HashAlgorithm,omitempty"`
}

type LedgerConfig struct {
	// Path is the LevelDB directory; an empty path disables the ledger
	Path string `yaml:"Path,omitempty"`
}

type MonitoringConfig struct {
	// ListenAddress is the IP on which the monitoring server binds
	ListenAddress string `yaml:"ListenAddress,omitempty"`
	// ListenPort is the port of the monitoring server; 0 picks a free port
	ListenPort int `yaml:"ListenPort,omitempty"`
}

// Load reads the configuration at filePath, fills in defaults, resolves relative paths
// against the directory of the file and validates the result.
func Load(filePath string) (*LocalConfig, error) {
	if filePath == "" {
		return nil, fmt.Errorf("cannot load local configuration, path: %s is empty", filePath)
	}
	localConfig := LocalConfig{}
	if err := utils.ReadFromYAML(&localConfig, filePath); err != nil {
		return nil, fmt.Errorf("cannot load local configuration, failed reading config yaml, err: %s", err)
	}

	localConfig.ApplyDefaults()
	localConfig.resolvePaths(filepath.Dir(filePath))
	if err := localConfig.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid local configuration %s", filePath)
	}
	return &localConfig, nil
}

// ApplyDefaults fills every unset field that has a default.
func (c *LocalConfig) ApplyDefaults() {
	if c.GeneralConfig.LogSpec == "" {
		c.GeneralConfig.LogSpec = DefaultLogSpec
	}
	if c.Directory.SchemaVersion == 0 {
		c.Directory.SchemaVersion = globalconf.CurrentVersion
	}
	if c.Generation.Interval == 0 {
		c.Generation.Interval = DefaultGenerationParams.Interval
	}
	if c.Generation.Validity == 0 {
		c.Generation.Validity = DefaultGenerationParams.Validity
	}
	if c.Generation.HashAlgorithm == "" {
		c.Generation.HashAlgorithm = DefaultGenerationParams.HashAlgorithm
	}
	if c.Monitoring.ListenAddress == "" {
		c.Monitoring.ListenAddress = DefaultMonitoringParams.ListenAddress
	}
}

func (c *LocalConfig) resolvePaths(base string) {
	for _, p := range []*string{&c.Registry.Path, &c.Directory.Root, &c.Ledger.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Validate checks the configuration for values no command can work with.
func (c *LocalConfig) Validate() error {
	if c.Directory.Root == "" {
		return errors.New("Directory.Root is not set")
	}
	if _, err := globalconf.LookupSchema(globalconf.KindShared, c.Directory.SchemaVersion); err != nil {
		return errors.WithMessage(err, "Directory.SchemaVersion")
	}
	if c.Generation.Interval < 0 {
		return errors.Errorf("Generation.Interval must not be negative, got %v", c.Generation.Interval)
	}
	if c.Generation.Validity < 0 {
		return errors.Errorf("Generation.Validity must not be negative, got %v", c.Generation.Validity)
	}
	if _, err := bccsp.GetHashOpt(c.Generation.HashAlgorithm); err != nil {
		return errors.Wrapf(err, "Generation.HashAlgorithm %s", c.Generation.HashAlgorithm)
	}
	if c.Monitoring.ListenPort < 0 || c.Monitoring.ListenPort > 65535 {
		return errors.Errorf("Monitoring.ListenPort %d is out of range", c.Monitoring.ListenPort)
	}
	return nil
}

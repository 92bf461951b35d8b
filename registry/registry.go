/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registry keeps the records the shared parameters are assembled from in a SQLite
// database and serves them through the core gateway interfaces.
package registry

import (
	"context"
	"database/sql"

	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/core"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	paramInstanceIdentifier   = "instanceIdentifier"
	paramOcspFreshnessSeconds = "ocspFreshnessSeconds"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS system_parameters (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS member_classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT UNIQUE NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instance TEXT NOT NULL,
		member_class TEXT NOT NULL,
		member_code TEXT NOT NULL,
		subsystem_code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		UNIQUE (instance, member_class, member_code, subsystem_code)
	)`,
	`CREATE TABLE IF NOT EXISTS certification_services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		authentication_only INTEGER NOT NULL DEFAULT 0,
		certificate_profile_info TEXT NOT NULL,
		cert BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS intermediate_cas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		certification_service_id INTEGER NOT NULL REFERENCES certification_services(id) ON DELETE CASCADE,
		cert BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ocsp_infos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		certification_service_id INTEGER REFERENCES certification_services(id) ON DELETE CASCADE,
		intermediate_ca_id INTEGER REFERENCES intermediate_cas(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		cert BLOB
	)`,
	`CREATE TABLE IF NOT EXISTS timestamping_services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		cert BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS security_servers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES clients(id),
		server_code TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		UNIQUE (owner_id, server_code)
	)`,
	`CREATE TABLE IF NOT EXISTS auth_certs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		security_server_id INTEGER NOT NULL REFERENCES security_servers(id) ON DELETE CASCADE,
		cert BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS server_clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		security_server_id INTEGER NOT NULL REFERENCES security_servers(id) ON DELETE CASCADE,
		client_id INTEGER NOT NULL REFERENCES clients(id),
		UNIQUE (security_server_id, client_id)
	)`,
	`CREATE TABLE IF NOT EXISTS global_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_code TEXT UNIQUE NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS global_group_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER NOT NULL REFERENCES global_groups(id) ON DELETE CASCADE,
		client_id INTEGER NOT NULL REFERENCES clients(id),
		UNIQUE (group_id, client_id)
	)`,
	`CREATE TABLE IF NOT EXISTS central_services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		service_code TEXT UNIQUE NOT NULL,
		target_client_id INTEGER REFERENCES clients(id)
	)`,
	`CREATE TABLE IF NOT EXISTS configuration_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS source_verification_certs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id INTEGER NOT NULL REFERENCES configuration_sources(id) ON DELETE CASCADE,
		internal INTEGER NOT NULL,
		cert BLOB NOT NULL
	)`,
}

// Registry is a SQLite backed data source for shared parameters generation.
type Registry struct {
	db     *sql.DB
	logger types.Logger
}

// Open opens or creates the registry database at path and brings its schema up to date.
func Open(path string, logger types.Logger) (*Registry, error) {
	if logger == nil {
		logger = flogging.MustGetLogger("globalconf.registry")
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open registry %s", path)
	}
	r := &Registry{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("Opened registry %s", path)
	return r, nil
}

func (r *Registry) migrate() error {
	for _, query := range schema {
		if _, err := r.db.Exec(query); err != nil {
			return errors.Wrap(err, "failed to create registry schema")
		}
	}
	return nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// Sources returns the gateways backed by this registry.
func (r *Registry) Sources() core.Sources {
	return core.Sources{
		SystemParameters:      systemParameters{r},
		CertificationServices: certificationServices{r},
		TimestampingServices:  timestampingServices{r},
		Clients:               clients{r},
		SecurityServers:       securityServers{r},
		GlobalGroups:          globalGroups{r},
		GlobalGroupMembers:    globalGroupMembers{r},
		CentralServices:       centralServices{r},
		MemberClasses:         memberClasses{r},
		ConfigurationSources:  configurationSources{r},
	}
}

// SetParameter stores a system parameter.
func (r *Registry) SetParameter(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_parameters (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return errors.Wrapf(err, "failed to store parameter %s", key)
}

func (r *Registry) parameter(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM system_parameters WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Errorf("system parameter %s is not set", key)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read parameter %s", key)
	}
	return value, nil
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/common/utils"
	"github.com/pkg/errors"
)

// Fixture describes registry content in YAML. Certificates are file paths, PEM or DER,
// relative to the fixture file. Client identifiers use the MEMBER:/SUBSYSTEM: notation.
type Fixture struct {
	InstanceIdentifier    string               `yaml:"instanceIdentifier"`
	OcspFreshnessSeconds  int                  `yaml:"ocspFreshnessSeconds"`
	MemberClasses         []MemberClassFixture `yaml:"memberClasses"`
	Members               []MemberFixture      `yaml:"members"`
	CertificationServices []CAFixture          `yaml:"certificationServices"`
	TimestampingServices  []TSAFixture         `yaml:"timestampingServices"`
	SecurityServers       []ServerFixture      `yaml:"securityServers"`
	GlobalGroups          []GroupFixture       `yaml:"globalGroups"`
	CentralServices       []CentralFixture     `yaml:"centralServices"`
	Sources               []SourceFixture      `yaml:"sources"`

	dir string
}

type MemberClassFixture struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
}

type MemberFixture struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Subsystems []string `yaml:"subsystems"`
}

type OcspFixture struct {
	URL  string `yaml:"url"`
	Cert string `yaml:"cert,omitempty"`
}

type CAFixture struct {
	Name                   string                `yaml:"name"`
	AuthenticationOnly     bool                  `yaml:"authenticationOnly"`
	CertificateProfileInfo string                `yaml:"certificateProfileInfo"`
	Cert                   string                `yaml:"cert"`
	Ocsp                   []OcspFixture         `yaml:"ocsp"`
	Intermediates          []IntermediateFixture `yaml:"intermediates"`
}

type IntermediateFixture struct {
	Cert string        `yaml:"cert"`
	Ocsp []OcspFixture `yaml:"ocsp"`
}

type TSAFixture struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Cert string `yaml:"cert"`
}

type ServerFixture struct {
	Owner      string   `yaml:"owner"`
	ServerCode string   `yaml:"serverCode"`
	Address    string   `yaml:"address"`
	AuthCerts  []string `yaml:"authCerts"`
	Clients    []string `yaml:"clients"`
}

type GroupFixture struct {
	Code        string   `yaml:"code"`
	Description string   `yaml:"description"`
	Members     []string `yaml:"members"`
}

type CentralFixture struct {
	ServiceCode  string `yaml:"serviceCode"`
	Implementing string `yaml:"implementing,omitempty"`
}

type SourceFixture struct {
	Address                   string   `yaml:"address"`
	InternalVerificationCerts []string `yaml:"internalVerificationCerts"`
	ExternalVerificationCerts []string `yaml:"externalVerificationCerts"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	f := &Fixture{}
	if err := utils.ReadFromYAML(f, path); err != nil {
		return nil, errors.Wrapf(err, "failed to read fixture %s", path)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

func (f *Fixture) cert(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.dir, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read certificate")
	}
	return utils.CertificateDER(raw), nil
}

// seeder inserts a fixture within one transaction.
type seeder struct {
	ctx     context.Context
	tx      *sql.Tx
	f       *Fixture
	clients map[types.ClientID]int64
}

// Seed inserts the content of f into the registry. Either all of it is stored or none.
func (r *Registry) Seed(ctx context.Context, f *Fixture) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	s := &seeder{ctx: ctx, tx: tx, f: f, clients: make(map[types.ClientID]int64)}
	if err := s.seed(); err != nil {
		tx.Rollback()
		return errors.WithMessage(err, "failed to seed registry")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit seed")
	}
	r.logger.Infof("Seeded registry of instance %s: %d members, %d security servers, %d global groups",
		f.InstanceIdentifier, len(f.Members), len(f.SecurityServers), len(f.GlobalGroups))
	return nil
}

func (s *seeder) exec(query string, args ...interface{}) (int64, error) {
	res, err := s.tx.ExecContext(s.ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *seeder) seed() error {
	f := s.f
	params := map[string]string{
		paramInstanceIdentifier:   f.InstanceIdentifier,
		paramOcspFreshnessSeconds: strconv.Itoa(f.OcspFreshnessSeconds),
	}
	for key, value := range params {
		if _, err := s.exec(`INSERT INTO system_parameters (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			return errors.Wrapf(err, "parameter %s", key)
		}
	}

	for _, class := range f.MemberClasses {
		if _, err := s.exec(`INSERT INTO member_classes (code, description) VALUES (?, ?)`,
			class.Code, class.Description); err != nil {
			return errors.Wrapf(err, "member class %s", class.Code)
		}
	}

	for _, member := range f.Members {
		if err := s.member(member); err != nil {
			return err
		}
	}

	for _, ca := range f.CertificationServices {
		if err := s.certificationService(ca); err != nil {
			return errors.WithMessagef(err, "certification service %s", ca.Name)
		}
	}

	for _, tsa := range f.TimestampingServices {
		cert, err := f.cert(tsa.Cert)
		if err != nil {
			return errors.WithMessagef(err, "timestamping service %s", tsa.Name)
		}
		if _, err := s.exec(`INSERT INTO timestamping_services (name, url, cert) VALUES (?, ?, ?)`,
			tsa.Name, tsa.URL, cert); err != nil {
			return errors.Wrapf(err, "timestamping service %s", tsa.Name)
		}
	}

	for _, server := range f.SecurityServers {
		if err := s.securityServer(server); err != nil {
			return errors.WithMessagef(err, "security server %s", server.ServerCode)
		}
	}

	for _, group := range f.GlobalGroups {
		if err := s.globalGroup(group); err != nil {
			return errors.WithMessagef(err, "global group %s", group.Code)
		}
	}

	for _, service := range f.CentralServices {
		var target interface{}
		if service.Implementing != "" {
			id, err := s.client(service.Implementing)
			if err != nil {
				return errors.WithMessagef(err, "central service %s", service.ServiceCode)
			}
			target = id
		}
		if _, err := s.exec(`INSERT INTO central_services (service_code, target_client_id) VALUES (?, ?)`,
			service.ServiceCode, target); err != nil {
			return errors.Wrapf(err, "central service %s", service.ServiceCode)
		}
	}

	for _, source := range f.Sources {
		if err := s.source(source); err != nil {
			return errors.WithMessagef(err, "configuration source %s", source.Address)
		}
	}
	return nil
}

func (s *seeder) member(member MemberFixture) error {
	id, err := types.ParseClientID(member.ID)
	if err != nil {
		return err
	}
	if id.IsSubsystem() {
		return errors.Errorf("member %s has a subsystem code", member.ID)
	}
	if err := s.insertClient(id, member.Name); err != nil {
		return err
	}
	for _, code := range member.Subsystems {
		if err := s.insertClient(types.NewSubsystemID(id.Instance, id.MemberClass, id.MemberCode, code), ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) insertClient(id types.ClientID, name string) error {
	rowID, err := s.exec(`INSERT INTO clients (instance, member_class, member_code, subsystem_code, name)
		VALUES (?, ?, ?, ?, ?)`, id.Instance, id.MemberClass, id.MemberCode, id.SubsystemCode, name)
	if err != nil {
		return errors.Wrapf(err, "client %s", id)
	}
	s.clients[id] = rowID
	return nil
}

func (s *seeder) client(raw string) (int64, error) {
	id, err := types.ParseClientID(raw)
	if err != nil {
		return 0, err
	}
	rowID, exists := s.clients[id]
	if !exists {
		return 0, errors.Errorf("unknown client %s", id)
	}
	return rowID, nil
}

func (s *seeder) certificationService(ca CAFixture) error {
	cert, err := s.f.cert(ca.Cert)
	if err != nil {
		return err
	}
	caID, err := s.exec(`INSERT INTO certification_services
		(name, authentication_only, certificate_profile_info, cert) VALUES (?, ?, ?, ?)`,
		ca.Name, ca.AuthenticationOnly, ca.CertificateProfileInfo, cert)
	if err != nil {
		return errors.Wrap(err, "insert")
	}
	if err := s.ocsp(ca.Ocsp, "certification_service_id", caID); err != nil {
		return err
	}
	for _, intermediate := range ca.Intermediates {
		cert, err := s.f.cert(intermediate.Cert)
		if err != nil {
			return err
		}
		icaID, err := s.exec(`INSERT INTO intermediate_cas (certification_service_id, cert) VALUES (?, ?)`, caID, cert)
		if err != nil {
			return errors.Wrap(err, "intermediate CA")
		}
		if err := s.ocsp(intermediate.Ocsp, "intermediate_ca_id", icaID); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) ocsp(responders []OcspFixture, ownerColumn string, ownerID int64) error {
	for _, o := range responders {
		cert, err := s.f.cert(o.Cert)
		if err != nil {
			return err
		}
		if _, err := s.exec(`INSERT INTO ocsp_infos (`+ownerColumn+`, url, cert) VALUES (?, ?, ?)`,
			ownerID, o.URL, cert); err != nil {
			return errors.Wrapf(err, "OCSP responder %s", o.URL)
		}
	}
	return nil
}

func (s *seeder) securityServer(server ServerFixture) error {
	owner, err := s.client(server.Owner)
	if err != nil {
		return err
	}
	serverID, err := s.exec(`INSERT INTO security_servers (owner_id, server_code, address) VALUES (?, ?, ?)`,
		owner, server.ServerCode, server.Address)
	if err != nil {
		return errors.Wrap(err, "insert")
	}
	for _, path := range server.AuthCerts {
		cert, err := s.f.cert(path)
		if err != nil {
			return err
		}
		if _, err := s.exec(`INSERT INTO auth_certs (security_server_id, cert) VALUES (?, ?)`, serverID, cert); err != nil {
			return errors.Wrap(err, "authentication certificate")
		}
	}
	for _, raw := range server.Clients {
		client, err := s.client(raw)
		if err != nil {
			return err
		}
		if _, err := s.exec(`INSERT INTO server_clients (security_server_id, client_id) VALUES (?, ?)`,
			serverID, client); err != nil {
			return errors.Wrapf(err, "client %s", raw)
		}
	}
	return nil
}

func (s *seeder) globalGroup(group GroupFixture) error {
	groupID, err := s.exec(`INSERT INTO global_groups (group_code, description) VALUES (?, ?)`,
		group.Code, group.Description)
	if err != nil {
		return errors.Wrap(err, "insert")
	}
	for _, raw := range group.Members {
		client, err := s.client(raw)
		if err != nil {
			return err
		}
		if _, err := s.exec(`INSERT INTO global_group_members (group_id, client_id) VALUES (?, ?)`,
			groupID, client); err != nil {
			return errors.Wrapf(err, "member %s", raw)
		}
	}
	return nil
}

func (s *seeder) source(source SourceFixture) error {
	sourceID, err := s.exec(`INSERT INTO configuration_sources (address) VALUES (?)`, source.Address)
	if err != nil {
		return errors.Wrap(err, "insert")
	}
	certs := map[bool][]string{true: source.InternalVerificationCerts, false: source.ExternalVerificationCerts}
	for _, internal := range []bool{true, false} {
		for _, path := range certs[internal] {
			cert, err := s.f.cert(path)
			if err != nil {
				return err
			}
			if _, err := s.exec(`INSERT INTO source_verification_certs (source_id, internal, cert) VALUES (?, ?, ?)`,
				sourceID, internal, cert); err != nil {
				return errors.Wrap(err, "verification certificate")
			}
		}
	}
	return nil
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/core"
	"github.com/pkg/errors"
)

const clientColumns = `c.instance, c.member_class, c.member_code, c.subsystem_code`

type systemParameters struct{ r *Registry }

func (s systemParameters) InstanceIdentifier(ctx context.Context) (string, error) {
	return s.r.parameter(ctx, paramInstanceIdentifier)
}

func (s systemParameters) OcspFreshnessSeconds(ctx context.Context) (int, error) {
	value, err := s.r.parameter(ctx, paramOcspFreshnessSeconds)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", paramOcspFreshnessSeconds, value)
	}
	return seconds, nil
}

type certificationServices struct{ r *Registry }

func (c certificationServices) FindAll(ctx context.Context) ([]core.CertificationService, error) {
	rows, err := c.r.db.QueryContext(ctx,
		`SELECT id, name, authentication_only, certificate_profile_info, cert FROM certification_services ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query certification services")
	}
	defer rows.Close()

	var out []core.CertificationService
	for rows.Next() {
		var ca core.CertificationService
		if err := rows.Scan(&ca.ID, &ca.Name, &ca.AuthenticationOnly, &ca.CertificateProfileInfo, &ca.Certificate); err != nil {
			return nil, errors.Wrap(err, "failed to scan certification service")
		}
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read certification services")
	}

	for i := range out {
		if out[i].OcspResponders, err = c.ocspResponders(ctx, "certification_service_id", out[i].ID); err != nil {
			return nil, err
		}
		if out[i].IntermediateCAs, err = c.intermediates(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c certificationServices) intermediates(ctx context.Context, caID int64) ([]core.IntermediateCA, error) {
	rows, err := c.r.db.QueryContext(ctx,
		`SELECT id, cert FROM intermediate_cas WHERE certification_service_id = ? ORDER BY id`, caID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query intermediate CAs of certification service %d", caID)
	}
	defer rows.Close()

	var ids []int64
	var out []core.IntermediateCA
	for rows.Next() {
		var id int64
		var ica core.IntermediateCA
		if err := rows.Scan(&id, &ica.Certificate); err != nil {
			return nil, errors.Wrap(err, "failed to scan intermediate CA")
		}
		ids = append(ids, id)
		out = append(out, ica)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read intermediate CAs")
	}
	for i, id := range ids {
		if out[i].OcspResponders, err = c.ocspResponders(ctx, "intermediate_ca_id", id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ocspResponders returns the responders owned by the row with the given id, in
// registration order.
func (c certificationServices) ocspResponders(ctx context.Context, ownerColumn string, ownerID int64) ([]core.OcspResponder, error) {
	rows, err := c.r.db.QueryContext(ctx,
		`SELECT url, cert FROM ocsp_infos WHERE `+ownerColumn+` = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query OCSP responders")
	}
	defer rows.Close()

	var out []core.OcspResponder
	for rows.Next() {
		var o core.OcspResponder
		if err := rows.Scan(&o.URL, &o.Certificate); err != nil {
			return nil, errors.Wrap(err, "failed to scan OCSP responder")
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "failed to read OCSP responders")
}

type timestampingServices struct{ r *Registry }

func (t timestampingServices) FindAll(ctx context.Context) ([]core.TimestampingService, error) {
	rows, err := t.r.db.QueryContext(ctx, `SELECT name, url, cert FROM timestamping_services ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query timestamping services")
	}
	defer rows.Close()

	var out []core.TimestampingService
	for rows.Next() {
		var tsa core.TimestampingService
		if err := rows.Scan(&tsa.Name, &tsa.URL, &tsa.Certificate); err != nil {
			return nil, errors.Wrap(err, "failed to scan timestamping service")
		}
		out = append(out, tsa)
	}
	return out, errors.Wrap(rows.Err(), "failed to read timestamping services")
}

type clients struct{ r *Registry }

// FindAll returns members and subsystems in registration order. The member name and
// the member class description are joined in; a subsystem whose member row is missing
// comes back with an empty member name.
func (c clients) FindAll(ctx context.Context) ([]core.FlattenedClient, error) {
	rows, err := c.r.db.QueryContext(ctx, `
		SELECT c.id, `+clientColumns+`, COALESCE(m.name, ''), COALESCE(mc.description, '')
		FROM clients c
		LEFT JOIN clients m ON m.instance = c.instance AND m.member_class = c.member_class
			AND m.member_code = c.member_code AND m.subsystem_code = ''
		LEFT JOIN member_classes mc ON mc.code = c.member_class
		ORDER BY c.id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query clients")
	}
	defer rows.Close()

	var out []core.FlattenedClient
	for rows.Next() {
		var fc core.FlattenedClient
		if err := rows.Scan(&fc.ID, &fc.Instance, &fc.MemberClassCode, &fc.MemberCode, &fc.SubsystemCode,
			&fc.MemberName, &fc.MemberClassDescription); err != nil {
			return nil, errors.Wrap(err, "failed to scan client")
		}
		out = append(out, fc)
	}
	return out, errors.Wrap(rows.Err(), "failed to read clients")
}

func (c clients) FindBySecurityServer(ctx context.Context, serverID int64) ([]types.ClientID, error) {
	return c.r.clientIDs(ctx, `
		SELECT `+clientColumns+` FROM server_clients sc
		JOIN clients c ON c.id = sc.client_id
		WHERE sc.security_server_id = ? ORDER BY sc.id`, serverID)
}

type securityServers struct{ r *Registry }

func (s securityServers) FindAll(ctx context.Context) ([]core.SecurityServerRecord, error) {
	rows, err := s.r.db.QueryContext(ctx, `
		SELECT s.id, `+clientColumns+`, s.server_code, s.address
		FROM security_servers s
		JOIN clients c ON c.id = s.owner_id
		ORDER BY s.id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query security servers")
	}
	defer rows.Close()

	var out []core.SecurityServerRecord
	for rows.Next() {
		var server core.SecurityServerRecord
		owner := &server.Owner
		if err := rows.Scan(&server.ID, &owner.Instance, &owner.MemberClass, &owner.MemberCode, &owner.SubsystemCode,
			&server.ServerCode, &server.Address); err != nil {
			return nil, errors.Wrap(err, "failed to scan security server")
		}
		out = append(out, server)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read security servers")
	}

	for i := range out {
		if out[i].AuthCerts, err = s.r.blobs(ctx,
			`SELECT cert FROM auth_certs WHERE security_server_id = ? ORDER BY id`, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type globalGroups struct{ r *Registry }

func (g globalGroups) FindAll(ctx context.Context) ([]core.GlobalGroupRecord, error) {
	rows, err := g.r.db.QueryContext(ctx, `SELECT id, group_code, description FROM global_groups ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query global groups")
	}
	defer rows.Close()

	var out []core.GlobalGroupRecord
	for rows.Next() {
		var group core.GlobalGroupRecord
		if err := rows.Scan(&group.ID, &group.GroupCode, &group.Description); err != nil {
			return nil, errors.Wrap(err, "failed to scan global group")
		}
		out = append(out, group)
	}
	return out, errors.Wrap(rows.Err(), "failed to read global groups")
}

type globalGroupMembers struct{ r *Registry }

func (g globalGroupMembers) FindByGroupID(ctx context.Context, groupID int64) ([]types.ClientID, error) {
	return g.r.clientIDs(ctx, `
		SELECT `+clientColumns+` FROM global_group_members gm
		JOIN clients c ON c.id = gm.client_id
		WHERE gm.group_id = ? ORDER BY gm.id`, groupID)
}

type centralServices struct{ r *Registry }

func (c centralServices) FindAll(ctx context.Context) ([]core.CentralServiceRecord, error) {
	rows, err := c.r.db.QueryContext(ctx, `
		SELECT cs.service_code, c.instance, c.member_class, c.member_code, c.subsystem_code
		FROM central_services cs
		LEFT JOIN clients c ON c.id = cs.target_client_id
		ORDER BY cs.id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query central services")
	}
	defer rows.Close()

	var out []core.CentralServiceRecord
	for rows.Next() {
		var service core.CentralServiceRecord
		var instance, class, code, subsystem sql.NullString
		if err := rows.Scan(&service.ServiceCode, &instance, &class, &code, &subsystem); err != nil {
			return nil, errors.Wrap(err, "failed to scan central service")
		}
		if instance.Valid {
			service.Target = types.NewSubsystemID(instance.String, class.String, code.String, subsystem.String)
		}
		out = append(out, service)
	}
	return out, errors.Wrap(rows.Err(), "failed to read central services")
}

type memberClasses struct{ r *Registry }

func (m memberClasses) FindAll(ctx context.Context) ([]core.MemberClassRecord, error) {
	rows, err := m.r.db.QueryContext(ctx, `SELECT code, description FROM member_classes ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query member classes")
	}
	defer rows.Close()

	var out []core.MemberClassRecord
	for rows.Next() {
		var class core.MemberClassRecord
		if err := rows.Scan(&class.Code, &class.Description); err != nil {
			return nil, errors.Wrap(err, "failed to scan member class")
		}
		out = append(out, class)
	}
	return out, errors.Wrap(rows.Err(), "failed to read member classes")
}

type configurationSources struct{ r *Registry }

func (c configurationSources) FindAll(ctx context.Context) ([]core.ConfigurationSourceRecord, error) {
	rows, err := c.r.db.QueryContext(ctx, `SELECT id, address FROM configuration_sources ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query configuration sources")
	}
	defer rows.Close()

	var ids []int64
	var out []core.ConfigurationSourceRecord
	for rows.Next() {
		var id int64
		var source core.ConfigurationSourceRecord
		if err := rows.Scan(&id, &source.Address); err != nil {
			return nil, errors.Wrap(err, "failed to scan configuration source")
		}
		ids = append(ids, id)
		out = append(out, source)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read configuration sources")
	}

	const certs = `SELECT cert FROM source_verification_certs WHERE source_id = ? AND internal = ? ORDER BY id`
	for i, id := range ids {
		if out[i].InternalVerificationCerts, err = c.r.blobs(ctx, certs, id, true); err != nil {
			return nil, err
		}
		if out[i].ExternalVerificationCerts, err = c.r.blobs(ctx, certs, id, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Registry) clientIDs(ctx context.Context, query string, args ...interface{}) ([]types.ClientID, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query client identifiers")
	}
	defer rows.Close()

	var out []types.ClientID
	for rows.Next() {
		var id types.ClientID
		if err := rows.Scan(&id.Instance, &id.MemberClass, &id.MemberCode, &id.SubsystemCode); err != nil {
			return nil, errors.Wrap(err, "failed to scan client identifier")
		}
		out = append(out, id)
	}
	return out, errors.Wrap(rows.Err(), "failed to read client identifiers")
}

func (r *Registry) blobs(ctx context.Context, query string, args ...interface{}) ([][]byte, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query certificates")
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, errors.Wrap(err, "failed to scan certificate")
		}
		out = append(out, blob)
	}
	return out, errors.Wrap(rows.Err(), "failed to read certificates")
}

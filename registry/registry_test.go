/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperledger-labs/globalconf/common/certhash"
	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/common/utils"
	"github.com/hyperledger-labs/globalconf/core"
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger-labs/globalconf/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var certNames = []string{"ca", "ocsp", "intermediate", "tsa", "auth", "source"}

// setupFixture copies the fixture into a temporary directory next to freshly generated
// certificates and returns the fixture path and the DER of each certificate.
func setupFixture(t *testing.T) (string, map[string][]byte) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "certs"), 0o755))

	certs := make(map[string][]byte)
	for _, name := range certNames {
		der := testutil.CreateCertificate(t, name)
		certs[name] = der
		require.NoError(t, utils.WritePEMToFile(filepath.Join(dir, "certs", name+".pem"), "CERTIFICATE", der))
	}

	content, err := os.ReadFile(filepath.Join("testdata", "fixture.yaml"))
	require.NoError(t, err)
	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path, certs
}

func openSeeded(t *testing.T) (*Registry, map[string][]byte) {
	path, certs := setupFixture(t)
	fixture, err := LoadFixture(path)
	require.NoError(t, err)

	r, err := Open(filepath.Join(t.TempDir(), "registry.db"), testutil.CreateLoggerForModule(t, "registry", zapcore.InfoLevel))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	require.NoError(t, r.Seed(context.Background(), fixture))
	return r, certs
}

func TestGateways(t *testing.T) {
	r, certs := openSeeded(t)
	ctx := context.Background()
	sources := r.Sources()

	ministry := types.NewMemberID("EE", "GOV", "1234")
	registry := types.NewSubsystemID("EE", "GOV", "1234", "registry")

	t.Run("system parameters", func(t *testing.T) {
		instance, err := sources.SystemParameters.InstanceIdentifier(ctx)
		require.NoError(t, err)
		assert.Equal(t, "EE", instance)

		freshness, err := sources.SystemParameters.OcspFreshnessSeconds(ctx)
		require.NoError(t, err)
		assert.Equal(t, 600, freshness)
	})

	t.Run("certification services", func(t *testing.T) {
		cas, err := sources.CertificationServices.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, cas, 1)

		ca := cas[0]
		assert.Equal(t, "Test CA", ca.Name)
		assert.True(t, ca.AuthenticationOnly)
		assert.Equal(t, "org.example.ProfileInfoProvider", ca.CertificateProfileInfo)
		assert.Equal(t, certs["ca"], ca.Certificate)
		assert.Equal(t, []core.OcspResponder{
			{URL: "http://ocsp1.example.com", Certificate: certs["ocsp"]},
			{URL: "http://ocsp2.example.com"},
		}, ca.OcspResponders)
		require.Len(t, ca.IntermediateCAs, 1)
		assert.Equal(t, certs["intermediate"], ca.IntermediateCAs[0].Certificate)
		assert.Equal(t, []core.OcspResponder{{URL: "http://ocsp3.example.com"}}, ca.IntermediateCAs[0].OcspResponders)
	})

	t.Run("timestamping services", func(t *testing.T) {
		tsas, err := sources.TimestampingServices.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.TimestampingService{
			{Name: "Test TSA", URL: "http://tsa.example.com", Certificate: certs["tsa"]},
		}, tsas)
	})

	t.Run("clients", func(t *testing.T) {
		rows, err := sources.Clients.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 4)

		var ids []types.ClientID
		for _, row := range rows {
			ids = append(ids, row.ClientID())
		}
		assert.Equal(t, []types.ClientID{
			ministry,
			registry,
			types.NewSubsystemID("EE", "GOV", "1234", "portal"),
			types.NewMemberID("EE", "COM", "5678"),
		}, ids)
		assert.Equal(t, "Ministry", rows[0].MemberName)
		assert.Equal(t, "Ministry", rows[2].MemberName)
		assert.Equal(t, "Government", rows[1].MemberClassDescription)
		assert.Equal(t, "Commercial", rows[3].MemberClassDescription)
	})

	t.Run("security servers", func(t *testing.T) {
		servers, err := sources.SecurityServers.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, servers, 1)
		assert.Equal(t, ministry, servers[0].Owner)
		assert.Equal(t, "ss1", servers[0].ServerCode)
		assert.Equal(t, "ss1.example.com", servers[0].Address)
		assert.Equal(t, [][]byte{certs["auth"]}, servers[0].AuthCerts)

		clients, err := sources.Clients.FindBySecurityServer(ctx, servers[0].ID)
		require.NoError(t, err)
		assert.Equal(t, []types.ClientID{ministry, registry}, clients)

		none, err := sources.Clients.FindBySecurityServer(ctx, servers[0].ID+100)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("global groups", func(t *testing.T) {
		groups, err := sources.GlobalGroups.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "security-server-owners", groups[0].GroupCode)
		assert.Equal(t, "Security server owners", groups[0].Description)

		members, err := sources.GlobalGroupMembers.FindByGroupID(ctx, groups[0].ID)
		require.NoError(t, err)
		assert.Equal(t, []types.ClientID{ministry}, members)
	})

	t.Run("central services", func(t *testing.T) {
		services, err := sources.CentralServices.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.CentralServiceRecord{
			{ServiceCode: "auth", Target: registry},
			{ServiceCode: "unassigned"},
		}, services)
	})

	t.Run("member classes", func(t *testing.T) {
		classes, err := sources.MemberClasses.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.MemberClassRecord{
			{Code: "GOV", Description: "Government"},
			{Code: "COM", Description: "Commercial"},
		}, classes)
	})

	t.Run("configuration sources", func(t *testing.T) {
		configSources, err := sources.ConfigurationSources.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, configSources, 1)
		assert.Equal(t, "cs.example.com", configSources[0].Address)
		assert.Equal(t, [][]byte{certs["source"]}, configSources[0].InternalVerificationCerts)
		assert.Empty(t, configSources[0].ExternalVerificationCerts)
	})
}

func TestAssembleFromRegistry(t *testing.T) {
	r, certs := openSeeded(t)

	// A subsystem whose member row is missing must not reach the document.
	_, err := r.db.Exec(`INSERT INTO clients (instance, member_class, member_code, subsystem_code) VALUES ('EE', 'GOV', '9999', 'orphan')`)
	require.NoError(t, err)

	hasher, err := certhash.New("")
	require.NoError(t, err)
	assembler, err := core.NewAssembler(r.Sources(), hasher, testutil.CreateLogger(t, 0), nil, true)
	require.NoError(t, err)

	p, err := assembler.Assemble(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "EE", p.InstanceIdentifier)
	require.Len(t, p.Members, 2)
	assert.Equal(t, "Ministry", p.Members[0].Name)
	assert.Len(t, p.Members[0].Subsystems, 2)
	assert.Empty(t, p.Members[1].Subsystems)

	authHash, err := hasher.Hash(certs["auth"])
	require.NoError(t, err)
	require.Len(t, p.SecurityServers, 1)
	assert.Equal(t, [][]byte{authHash}, p.SecurityServers[0].AuthCertHashes)
	assert.Equal(t, 600, p.GlobalSettings.OcspFreshnessSeconds)

	data, err := globalconf.EncodeShared(p)
	require.NoError(t, err)
	parsed, err := globalconf.ParseShared(data, globalconf.CurrentVersion)
	require.NoError(t, err)
	assert.Equal(t, p.Members, parsed.Members)
}

func TestSeedIsAtomic(t *testing.T) {
	path, _ := setupFixture(t)
	fixture, err := LoadFixture(path)
	require.NoError(t, err)
	fixture.GlobalGroups[0].Members = append(fixture.GlobalGroups[0].Members, "MEMBER:EE/GOV/0000")

	r, err := Open(filepath.Join(t.TempDir(), "registry.db"), nil)
	require.NoError(t, err)
	defer r.Close()

	err = r.Seed(context.Background(), fixture)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown client MEMBER:EE/GOV/0000")

	rows, err := r.Sources().Clients.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = r.Sources().SystemParameters.InstanceIdentifier(context.Background())
	require.EqualError(t, err, "system parameter instanceIdentifier is not set")
}

func TestSeedRejectsBadFixtures(t *testing.T) {
	path, _ := setupFixture(t)

	for name, mutate := range map[string]func(f *Fixture){
		"member with subsystem code": func(f *Fixture) { f.Members[0].ID = "SUBSYSTEM:EE/GOV/1234/x" },
		"malformed client id":        func(f *Fixture) { f.SecurityServers[0].Owner = "EE/GOV/1234" },
		"missing certificate file":   func(f *Fixture) { f.TimestampingServices[0].Cert = "certs/missing.pem" },
		"unknown implementing":       func(f *Fixture) { f.CentralServices[0].Implementing = "SUBSYSTEM:EE/GOV/1234/none" },
	} {
		t.Run(name, func(t *testing.T) {
			fixture, err := LoadFixture(path)
			require.NoError(t, err)
			mutate(fixture)

			r, err := Open(filepath.Join(t.TempDir(), "registry.db"), nil)
			require.NoError(t, err)
			defer r.Close()
			require.Error(t, r.Seed(context.Background(), fixture))
		})
	}
}

func TestReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")
	r, err := Open(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, r.SetParameter(context.Background(), paramInstanceIdentifier, "FI"))
	require.NoError(t, r.SetParameter(context.Background(), paramOcspFreshnessSeconds, "not a number"))
	require.NoError(t, r.Close())

	r, err = Open(dbPath, nil)
	require.NoError(t, err)
	defer r.Close()

	instance, err := r.Sources().SystemParameters.InstanceIdentifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FI", instance)

	_, err = r.Sources().SystemParameters.OcspFreshnessSeconds(context.Background())
	require.ErrorContains(t, err, `invalid ocspFreshnessSeconds "not a number"`)
}

func TestLoadFixtureMissing(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

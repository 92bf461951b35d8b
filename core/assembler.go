/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package core

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/common/utils"
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger/fabric-lib-go/common/metrics/disabled"
	"golang.org/x/sync/errgroup"
)

// ErrAssemblyInProgress is returned when Assemble is called while another call is running.
var ErrAssemblyInProgress = errors.New("assembly already in progress")

// Assembler builds shared parameters from the data source gateways.
type Assembler struct {
	sources  Sources
	hasher   CertHasher
	logger   types.Logger
	metrics  *Metrics
	parallel bool

	lock sync.Mutex
}

// NewAssembler creates an Assembler. When parallel is set the gateways are queried
// concurrently. A nil metrics disables metrics.
func NewAssembler(sources Sources, hasher CertHasher, logger types.Logger, metrics *Metrics, parallel bool) (*Assembler, error) {
	if err := sources.check(); err != nil {
		return nil, err
	}
	if hasher == nil {
		return nil, errors.New("no certificate hasher")
	}
	if logger == nil {
		return nil, errors.New("no logger")
	}
	if metrics == nil {
		metrics = NewMetrics(&disabled.Provider{})
	}
	return &Assembler{sources: sources, hasher: hasher, logger: logger, metrics: metrics, parallel: parallel}, nil
}

// check reports the first missing gateway in declaration order.
func (s Sources) check() error {
	for _, gateway := range []struct {
		name    string
		missing bool
	}{
		{"system parameters", s.SystemParameters == nil},
		{"certification services", s.CertificationServices == nil},
		{"timestamping services", s.TimestampingServices == nil},
		{"clients", s.Clients == nil},
		{"security servers", s.SecurityServers == nil},
		{"global groups", s.GlobalGroups == nil},
		{"global group members", s.GlobalGroupMembers == nil},
		{"central services", s.CentralServices == nil},
		{"member classes", s.MemberClasses == nil},
		{"configuration sources", s.ConfigurationSources == nil},
	} {
		if gateway.missing {
			return errors.Newf("no %s gateway", gateway.name)
		}
	}
	return nil
}

// records holds everything read from the gateways in one generation.
type records struct {
	instance        string
	ocspFreshness   int
	cas             []CertificationService
	tsas            []TimestampingService
	clients         []FlattenedClient
	servers         []SecurityServerRecord
	serverClients   [][]types.ClientID
	groups          []GlobalGroupRecord
	groupMembers    [][]types.ClientID
	centralServices []CentralServiceRecord
	memberClasses   []MemberClassRecord
	sources         []ConfigurationSourceRecord
}

// Assemble reads every data source and builds one complete shared parameters document.
// Gateway failures are marked utils.ErrDataAccess and hashing failures utils.ErrCrypto;
// on any failure no document is returned.
func (a *Assembler) Assemble(ctx context.Context) (*globalconf.SharedParameters, error) {
	if !a.lock.TryLock() {
		return nil, ErrAssemblyInProgress
	}
	defer a.lock.Unlock()

	start := time.Now()
	p, err := a.assemble(ctx)
	a.metrics.observe(p, err, time.Since(start))
	if err != nil {
		a.logger.Warnf("Failed to assemble shared parameters: %v", err)
		return nil, err
	}
	a.logger.Infof("Assembled shared parameters of instance %s: %d members, %d security servers, %d global groups in %v",
		p.InstanceIdentifier, len(p.Members), len(p.SecurityServers), len(p.GlobalGroups), time.Since(start))
	return p, nil
}

func (a *Assembler) assemble(ctx context.Context) (*globalconf.SharedParameters, error) {
	r, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}

	p := &globalconf.SharedParameters{
		InstanceIdentifier: r.instance,
		Sources:            toSources(r.sources),
		ApprovedTSAs:       toApprovedTSAs(r.tsas),
		Members:            BuildMembers(r.clients, a.logger),
		GlobalGroups:       toGlobalGroups(r.groups, r.groupMembers),
		CentralServices:    toCentralServices(r.centralServices),
		GlobalSettings: globalconf.GlobalSettings{
			MemberClasses:        toMemberClasses(r.memberClasses),
			OcspFreshnessSeconds: r.ocspFreshness,
		},
	}
	if p.ApprovedCAs, err = toApprovedCAs(r.cas); err != nil {
		return nil, err
	}
	if p.SecurityServers, err = a.toSecurityServers(r.servers, r.serverClients); err != nil {
		return nil, err
	}
	return p, nil
}

// fetch queries the gateways in two rounds: the collections, then the per server clients
// and per group members that depend on them.
func (a *Assembler) fetch(ctx context.Context) (*records, error) {
	r := &records{}

	g, gCtx := a.group(ctx)
	g.Go(func() (err error) {
		r.instance, err = a.sources.SystemParameters.InstanceIdentifier(gCtx)
		return dataAccess(err, "instance identifier")
	})
	g.Go(func() (err error) {
		r.ocspFreshness, err = a.sources.SystemParameters.OcspFreshnessSeconds(gCtx)
		return dataAccess(err, "OCSP freshness seconds")
	})
	g.Go(func() (err error) {
		r.cas, err = a.sources.CertificationServices.FindAll(gCtx)
		return dataAccess(err, "certification services")
	})
	g.Go(func() (err error) {
		r.tsas, err = a.sources.TimestampingServices.FindAll(gCtx)
		return dataAccess(err, "timestamping services")
	})
	g.Go(func() (err error) {
		r.clients, err = a.sources.Clients.FindAll(gCtx)
		return dataAccess(err, "clients")
	})
	g.Go(func() (err error) {
		r.servers, err = a.sources.SecurityServers.FindAll(gCtx)
		return dataAccess(err, "security servers")
	})
	g.Go(func() (err error) {
		r.groups, err = a.sources.GlobalGroups.FindAll(gCtx)
		return dataAccess(err, "global groups")
	})
	g.Go(func() (err error) {
		r.centralServices, err = a.sources.CentralServices.FindAll(gCtx)
		return dataAccess(err, "central services")
	})
	g.Go(func() (err error) {
		r.memberClasses, err = a.sources.MemberClasses.FindAll(gCtx)
		return dataAccess(err, "member classes")
	})
	g.Go(func() (err error) {
		r.sources, err = a.sources.ConfigurationSources.FindAll(gCtx)
		return dataAccess(err, "configuration sources")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.serverClients = make([][]types.ClientID, len(r.servers))
	r.groupMembers = make([][]types.ClientID, len(r.groups))
	g, gCtx = a.group(ctx)
	for i, server := range r.servers {
		g.Go(func() (err error) {
			r.serverClients[i], err = a.sources.Clients.FindBySecurityServer(gCtx, server.ID)
			return dataAccess(err, "clients of security server %s/%s", server.Owner, server.ServerCode)
		})
	}
	for i, group := range r.groups {
		g.Go(func() (err error) {
			r.groupMembers[i], err = a.sources.GlobalGroupMembers.FindByGroupID(gCtx, group.ID)
			return dataAccess(err, "members of global group %s", group.GroupCode)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

func (a *Assembler) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gCtx := errgroup.WithContext(ctx)
	if !a.parallel {
		g.SetLimit(1)
	}
	return g, gCtx
}

func dataAccess(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "failed to read "+format, args...), utils.ErrDataAccess)
}

func (a *Assembler) toSecurityServers(servers []SecurityServerRecord, clients [][]types.ClientID) ([]globalconf.SecurityServer, error) {
	var out []globalconf.SecurityServer
	for i, s := range servers {
		server := globalconf.SecurityServer{
			Owner:      s.Owner,
			ServerCode: s.ServerCode,
			Address:    s.Address,
			Clients:    clients[i],
		}
		for j, cert := range s.AuthCerts {
			hash, err := a.hasher.Hash(cert)
			if err != nil {
				return nil, errors.Mark(errors.Wrapf(err, "failed to hash authentication certificate %d of security server %s/%s",
					j, s.Owner, s.ServerCode), utils.ErrCrypto)
			}
			server.AuthCertHashes = append(server.AuthCertHashes, hash)
		}
		out = append(out, server)
	}
	return out, nil
}

func toApprovedCAs(cas []CertificationService) ([]globalconf.ApprovedCA, error) {
	var out []globalconf.ApprovedCA
	for _, ca := range cas {
		if len(ca.Certificate) == 0 {
			return nil, errors.Mark(errors.Newf("certification service %s has no certificate", ca.Name), utils.ErrDataAccess)
		}
		approved := globalconf.ApprovedCA{
			Name:                   ca.Name,
			AuthenticationOnly:     ca.AuthenticationOnly,
			CertificateProfileInfo: ca.CertificateProfileInfo,
			TopCA:                  globalconf.CaInfo{Cert: ca.Certificate, OcspInfos: toOcspInfos(ca.OcspResponders)},
		}
		for _, intermediate := range ca.IntermediateCAs {
			approved.IntermediateCAs = append(approved.IntermediateCAs, globalconf.CaInfo{
				Cert:      intermediate.Certificate,
				OcspInfos: toOcspInfos(intermediate.OcspResponders),
			})
		}
		out = append(out, approved)
	}
	return out, nil
}

func toOcspInfos(responders []OcspResponder) []globalconf.OcspInfo {
	var out []globalconf.OcspInfo
	for _, r := range responders {
		out = append(out, globalconf.OcspInfo{URL: r.URL, Cert: r.Certificate})
	}
	return out
}

func toApprovedTSAs(tsas []TimestampingService) []globalconf.ApprovedTSA {
	var out []globalconf.ApprovedTSA
	for _, t := range tsas {
		out = append(out, globalconf.ApprovedTSA{Name: t.Name, URL: t.URL, Cert: t.Certificate})
	}
	return out
}

func toGlobalGroups(groups []GlobalGroupRecord, members [][]types.ClientID) []globalconf.GlobalGroup {
	var out []globalconf.GlobalGroup
	for i, g := range groups {
		out = append(out, globalconf.GlobalGroup{GroupCode: g.GroupCode, Description: g.Description, GroupMembers: members[i]})
	}
	return out
}

func toCentralServices(services []CentralServiceRecord) []globalconf.CentralService {
	var out []globalconf.CentralService
	for _, s := range services {
		out = append(out, globalconf.CentralService{ServiceCode: s.ServiceCode, Implementing: s.Target})
	}
	return out
}

func toMemberClasses(classes []MemberClassRecord) []globalconf.MemberClass {
	var out []globalconf.MemberClass
	for _, c := range classes {
		out = append(out, globalconf.MemberClass{Code: c.Code, Description: c.Description})
	}
	return out
}

func toSources(sources []ConfigurationSourceRecord) []globalconf.ConfigurationSource {
	var out []globalconf.ConfigurationSource
	for _, s := range sources {
		out = append(out, globalconf.ConfigurationSource{
			Address:                   s.Address,
			InternalVerificationCerts: s.InternalVerificationCerts,
			ExternalVerificationCerts: s.ExternalVerificationCerts,
		})
	}
	return out
}

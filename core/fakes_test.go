/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package core_test

import (
	"context"
	"sync"

	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/core"
)

// fakeRegistry serves canned records. A gateway named in failures returns that error.
type fakeRegistry struct {
	instance        string
	ocspFreshness   int
	cas             []core.CertificationService
	tsas            []core.TimestampingService
	clients         []core.FlattenedClient
	servers         []core.SecurityServerRecord
	serverClients   map[int64][]types.ClientID
	groups          []core.GlobalGroupRecord
	groupMembers    map[int64][]types.ClientID
	centralServices []core.CentralServiceRecord
	memberClasses   []core.MemberClassRecord
	sources         []core.ConfigurationSourceRecord

	failures map[string]error
	// block, when set, is waited on by the instance identifier lookup, which first
	// signals entered if that is set.
	block   chan struct{}
	entered chan struct{}

	lock  sync.Mutex
	calls map[string]int
}

func (f *fakeRegistry) call(name string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	return f.failures[name]
}

func (f *fakeRegistry) callCount(name string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[name]
}

func (f *fakeRegistry) sourcesBundle() core.Sources {
	return core.Sources{
		SystemParameters:      systemParameters{f},
		CertificationServices: certificationServices{f},
		TimestampingServices:  timestampingServices{f},
		Clients:               clients{f},
		SecurityServers:       securityServers{f},
		GlobalGroups:          globalGroups{f},
		GlobalGroupMembers:    globalGroupMembers{f},
		CentralServices:       centralServices{f},
		MemberClasses:         memberClasses{f},
		ConfigurationSources:  configurationSources{f},
	}
}

type systemParameters struct{ f *fakeRegistry }

func (s systemParameters) InstanceIdentifier(ctx context.Context) (string, error) {
	if s.f.entered != nil {
		select {
		case s.f.entered <- struct{}{}:
		default:
		}
	}
	if s.f.block != nil {
		select {
		case <-s.f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.f.instance, s.f.call("instance")
}

func (s systemParameters) OcspFreshnessSeconds(context.Context) (int, error) {
	return s.f.ocspFreshness, s.f.call("ocspFreshness")
}

type certificationServices struct{ f *fakeRegistry }

func (c certificationServices) FindAll(context.Context) ([]core.CertificationService, error) {
	return c.f.cas, c.f.call("cas")
}

type timestampingServices struct{ f *fakeRegistry }

func (t timestampingServices) FindAll(context.Context) ([]core.TimestampingService, error) {
	return t.f.tsas, t.f.call("tsas")
}

type clients struct{ f *fakeRegistry }

func (c clients) FindAll(context.Context) ([]core.FlattenedClient, error) {
	return c.f.clients, c.f.call("clients")
}

func (c clients) FindBySecurityServer(_ context.Context, serverID int64) ([]types.ClientID, error) {
	return c.f.serverClients[serverID], c.f.call("serverClients")
}

type securityServers struct{ f *fakeRegistry }

func (s securityServers) FindAll(context.Context) ([]core.SecurityServerRecord, error) {
	return s.f.servers, s.f.call("servers")
}

type globalGroups struct{ f *fakeRegistry }

func (g globalGroups) FindAll(context.Context) ([]core.GlobalGroupRecord, error) {
	return g.f.groups, g.f.call("groups")
}

type globalGroupMembers struct{ f *fakeRegistry }

func (g globalGroupMembers) FindByGroupID(_ context.Context, groupID int64) ([]types.ClientID, error) {
	return g.f.groupMembers[groupID], g.f.call("groupMembers")
}

type centralServices struct{ f *fakeRegistry }

func (c centralServices) FindAll(context.Context) ([]core.CentralServiceRecord, error) {
	return c.f.centralServices, c.f.call("centralServices")
}

type memberClasses struct{ f *fakeRegistry }

func (m memberClasses) FindAll(context.Context) ([]core.MemberClassRecord, error) {
	return m.f.memberClasses, m.f.call("memberClasses")
}

type configurationSources struct{ f *fakeRegistry }

func (c configurationSources) FindAll(context.Context) ([]core.ConfigurationSourceRecord, error) {
	return c.f.sources, c.f.call("sources")
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package core

import (
	"context"

	"github.com/hyperledger-labs/globalconf/common/types"
)

// The gateways below are the read-only data sources of a generation. Each is queried once
// per generation.

type SystemParameters interface {
	InstanceIdentifier(ctx context.Context) (string, error)
	OcspFreshnessSeconds(ctx context.Context) (int, error)
}

type CertificationServices interface {
	FindAll(ctx context.Context) ([]CertificationService, error)
}

type TimestampingServices interface {
	FindAll(ctx context.Context) ([]TimestampingService, error)
}

type Clients interface {
	// FindAll returns one row per member and one row per subsystem.
	FindAll(ctx context.Context) ([]FlattenedClient, error)
	// FindBySecurityServer returns the clients served by a security server.
	FindBySecurityServer(ctx context.Context, serverID int64) ([]types.ClientID, error)
}

type SecurityServers interface {
	FindAll(ctx context.Context) ([]SecurityServerRecord, error)
}

type GlobalGroups interface {
	FindAll(ctx context.Context) ([]GlobalGroupRecord, error)
}

type GlobalGroupMembers interface {
	FindByGroupID(ctx context.Context, groupID int64) ([]types.ClientID, error)
}

type CentralServices interface {
	FindAll(ctx context.Context) ([]CentralServiceRecord, error)
}

type MemberClasses interface {
	FindAll(ctx context.Context) ([]MemberClassRecord, error)
}

type ConfigurationSources interface {
	FindAll(ctx context.Context) ([]ConfigurationSourceRecord, error)
}

// Sources bundles the gateways an Assembler reads from.
type Sources struct {
	SystemParameters      SystemParameters
	CertificationServices CertificationServices
	TimestampingServices  TimestampingServices
	Clients               Clients
	SecurityServers       SecurityServers
	GlobalGroups          GlobalGroups
	GlobalGroupMembers    GlobalGroupMembers
	CentralServices       CentralServices
	MemberClasses         MemberClasses
	ConfigurationSources  ConfigurationSources
}

// CertHasher maps an authentication certificate to its fingerprint.
type CertHasher interface {
	Hash(cert []byte) ([]byte, error)
}

// CertificationService is an approved certification authority with its OCSP responders,
// in priority order, and its intermediate CAs.
type CertificationService struct {
	ID                     int64
	Name                   string
	AuthenticationOnly     bool
	CertificateProfileInfo string
	Certificate            []byte
	OcspResponders         []OcspResponder
	IntermediateCAs        []IntermediateCA
}

type OcspResponder struct {
	URL         string
	Certificate []byte
}

type IntermediateCA struct {
	Certificate    []byte
	OcspResponders []OcspResponder
}

type TimestampingService struct {
	Name        string
	URL         string
	Certificate []byte
}

// FlattenedClient is a row of the client view: a member when SubsystemCode is empty,
// otherwise a subsystem of the member. MemberName is the name of the owning member.
type FlattenedClient struct {
	ID                     int64
	Instance               string
	MemberClassCode        string
	MemberClassDescription string
	MemberCode             string
	MemberName             string
	SubsystemCode          string
}

// ClientID returns the identifier the row denotes.
func (c FlattenedClient) ClientID() types.ClientID {
	return types.NewSubsystemID(c.Instance, c.MemberClassCode, c.MemberCode, c.SubsystemCode)
}

// SecurityServerRecord is a registered security server. AuthCerts holds raw certificates.
type SecurityServerRecord struct {
	ID         int64
	Owner      types.ClientID
	ServerCode string
	Address    string
	AuthCerts  [][]byte
}

type GlobalGroupRecord struct {
	ID          int64
	GroupCode   string
	Description string
}

// CentralServiceRecord maps a service code to its implementation; Target is zero when
// the service is not implemented.
type CentralServiceRecord struct {
	ServiceCode string
	Target      types.ClientID
}

type MemberClassRecord struct {
	Code        string
	Description string
}

type ConfigurationSourceRecord struct {
	Address                   string
	InternalVerificationCerts [][]byte
	ExternalVerificationCerts [][]byte
}

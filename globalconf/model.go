/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package globalconf

import (
	"time"

	"github.com/hyperledger-labs/globalconf/common/types"
)

// SharedParameters is the configuration document distributed to every gateway of a
// federation instance. A value is built in one piece by the assembler and is not
// modified afterwards.
type SharedParameters struct {
	InstanceIdentifier string
	Sources            []ConfigurationSource
	ApprovedCAs        []ApprovedCA
	ApprovedTSAs       []ApprovedTSA
	Members            []Member
	SecurityServers    []SecurityServer
	GlobalGroups       []GlobalGroup
	CentralServices    []CentralService
	GlobalSettings     GlobalSettings
}

// ConfigurationSource is a location the configuration is downloaded from, together with
// the certificates that verify the signature of the downloaded configuration.
type ConfigurationSource struct {
	Address                   string
	InternalVerificationCerts [][]byte
	ExternalVerificationCerts [][]byte
}

// ApprovedCA is a certification authority trusted by the instance.
type ApprovedCA struct {
	Name                   string
	AuthenticationOnly     bool
	CertificateProfileInfo string
	TopCA                  CaInfo
	IntermediateCAs        []CaInfo
}

// CaInfo holds a CA certificate and its OCSP responders. The responders are kept in
// priority order.
type CaInfo struct {
	OcspInfos []OcspInfo
	Cert      []byte
}

type OcspInfo struct {
	URL  string
	Cert []byte
}

// ApprovedTSA is a timestamping authority trusted by the instance.
type ApprovedTSA struct {
	Name string
	URL  string
	Cert []byte
}

type MemberClass struct {
	Code        string
	Description string
}

// Member is a member of the instance with the subsystems registered under it.
type Member struct {
	ID          types.ClientID
	MemberClass MemberClass
	MemberCode  string
	Name        string
	Subsystems  []Subsystem
}

type Subsystem struct {
	SubsystemCode string
	ID            types.ClientID
}

// SecurityServer is a gateway of a member. Authentication certificates are represented
// by their fingerprints.
type SecurityServer struct {
	Owner          types.ClientID
	ServerCode     string
	Address        string
	Clients        []types.ClientID
	AuthCertHashes [][]byte
}

type GlobalGroup struct {
	GroupCode    string
	Description  string
	GroupMembers []types.ClientID
}

// CentralService maps a service code to the client implementing it. Implementing is the
// zero ClientID when no implementation is registered.
type CentralService struct {
	ServiceCode  string
	Implementing types.ClientID
}

type GlobalSettings struct {
	MemberClasses        []MemberClass
	OcspFreshnessSeconds int
}

// PrivateParameters is the configuration document local to an instance.
type PrivateParameters struct {
	InstanceIdentifier          string
	ConfigurationAnchors        []ConfigurationAnchor
	ManagementService           ManagementService
	TimeStampingIntervalSeconds int
}

// ConfigurationAnchor points at the configuration of a (possibly federated) instance.
type ConfigurationAnchor struct {
	InstanceIdentifier string
	GeneratedAt        time.Time
	Sources            []AnchorSource
}

type AnchorSource struct {
	DownloadURL       string
	VerificationCerts [][]byte
}

type ManagementService struct {
	AuthCertRegServiceAddress          string
	AuthCertRegServiceCert             []byte
	ManagementRequestServiceProviderID types.ClientID
}

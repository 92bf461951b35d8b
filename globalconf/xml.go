/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package globalconf

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/pkg/errors"
)

type clientIDXML struct {
	ObjectType    string `xml:"objectType,attr"`
	Instance      string `xml:"instance"`
	MemberClass   string `xml:"memberClass"`
	MemberCode    string `xml:"memberCode"`
	SubsystemCode string `xml:"subsystemCode,omitempty"`
}

type sourceXML struct {
	Address  string   `xml:"address"`
	Internal []string `xml:"internalVerificationCert"`
	External []string `xml:"externalVerificationCert"`
}

type ocspXML struct {
	URL  string `xml:"url"`
	Cert string `xml:"cert,omitempty"`
}

type caInfoXML struct {
	Cert string    `xml:"cert"`
	Ocsp []ocspXML `xml:"ocsp"`
}

type approvedCAXML struct {
	Name                   string      `xml:"name"`
	AuthenticationOnly     *bool       `xml:"authenticationOnly,omitempty"`
	TopCA                  caInfoXML   `xml:"topCA"`
	IntermediateCAs        []caInfoXML `xml:"intermediateCA"`
	CertificateProfileInfo string      `xml:"certificateProfileInfo"`
}

type approvedTSAXML struct {
	Name string `xml:"name"`
	URL  string `xml:"url"`
	Cert string `xml:"cert"`
}

type memberClassXML struct {
	Code        string `xml:"code"`
	Description string `xml:"description"`
}

type subsystemXML struct {
	SubsystemCode string      `xml:"subsystemCode"`
	ID            clientIDXML `xml:"id"`
}

type memberXML struct {
	ID          clientIDXML    `xml:"id"`
	MemberClass memberClassXML `xml:"memberClass"`
	MemberCode  string         `xml:"memberCode"`
	Name        string         `xml:"name"`
	Subsystems  []subsystemXML `xml:"subsystem"`
}

type securityServerXML struct {
	Owner          clientIDXML   `xml:"owner"`
	ServerCode     string        `xml:"serverCode"`
	Address        string        `xml:"address,omitempty"`
	Clients        []clientIDXML `xml:"client"`
	AuthCertHashes []string      `xml:"authCertHash"`
}

type globalGroupXML struct {
	GroupCode    string        `xml:"groupCode"`
	Description  string        `xml:"description"`
	GroupMembers []clientIDXML `xml:"groupMember"`
}

type centralServiceXML struct {
	ServiceCode  string       `xml:"serviceCode"`
	Implementing *clientIDXML `xml:"implementingService,omitempty"`
}

type globalSettingsXML struct {
	MemberClasses        []memberClassXML `xml:"memberClass"`
	OcspFreshnessSeconds int              `xml:"ocspFreshnessSeconds"`
}

type sharedXML struct {
	XMLName            xml.Name            `xml:"urn:globalconf:xsd:conf conf"`
	InstanceIdentifier string              `xml:"instanceIdentifier"`
	Sources            []sourceXML         `xml:"source"`
	ApprovedCAs        []approvedCAXML     `xml:"approvedCA"`
	ApprovedTSAs       []approvedTSAXML    `xml:"approvedTSA"`
	Members            []memberXML         `xml:"member"`
	SecurityServers    []securityServerXML `xml:"securityServer"`
	GlobalGroups       []globalGroupXML    `xml:"globalGroup"`
	CentralServices    []centralServiceXML `xml:"centralService"`
	GlobalSettings     globalSettingsXML   `xml:"globalSettings"`
}

type anchorSourceXML struct {
	DownloadURL       string   `xml:"downloadURL"`
	VerificationCerts []string `xml:"verificationCert"`
}

type anchorXML struct {
	GeneratedAt        string            `xml:"generatedAt"`
	InstanceIdentifier string            `xml:"instanceIdentifier"`
	Sources            []anchorSourceXML `xml:"source"`
}

type managementServiceXML struct {
	AuthCertRegServiceAddress          string      `xml:"authCertRegServiceAddress"`
	AuthCertRegServiceCert             string      `xml:"authCertRegServiceCert"`
	ManagementRequestServiceProviderID clientIDXML `xml:"managementRequestServiceProviderId"`
}

type privateXML struct {
	XMLName                     xml.Name             `xml:"urn:globalconf:xsd:conf conf"`
	InstanceIdentifier          string               `xml:"instanceIdentifier"`
	ConfigurationAnchors        []anchorXML          `xml:"configurationAnchor"`
	ManagementService           managementServiceXML `xml:"managementService"`
	TimeStampingIntervalSeconds int                  `xml:"timeStampingIntervalSeconds"`
}

// EncodeShared serializes shared parameters in the current schema version.
func EncodeShared(p *SharedParameters) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil shared parameters")
	}
	doc := sharedXML{
		InstanceIdentifier: p.InstanceIdentifier,
		GlobalSettings: globalSettingsXML{
			MemberClasses:        memberClassesToXML(p.GlobalSettings.MemberClasses),
			OcspFreshnessSeconds: p.GlobalSettings.OcspFreshnessSeconds,
		},
	}
	for _, s := range p.Sources {
		doc.Sources = append(doc.Sources, sourceXML{
			Address:  s.Address,
			Internal: encodeAll(s.InternalVerificationCerts),
			External: encodeAll(s.ExternalVerificationCerts),
		})
	}
	for _, ca := range p.ApprovedCAs {
		c := approvedCAXML{
			Name:                   ca.Name,
			TopCA:                  caInfoToXML(ca.TopCA),
			CertificateProfileInfo: ca.CertificateProfileInfo,
		}
		if ca.AuthenticationOnly {
			authOnly := true
			c.AuthenticationOnly = &authOnly
		}
		for _, ica := range ca.IntermediateCAs {
			c.IntermediateCAs = append(c.IntermediateCAs, caInfoToXML(ica))
		}
		doc.ApprovedCAs = append(doc.ApprovedCAs, c)
	}
	for _, tsa := range p.ApprovedTSAs {
		doc.ApprovedTSAs = append(doc.ApprovedTSAs, approvedTSAXML{Name: tsa.Name, URL: tsa.URL, Cert: encode(tsa.Cert)})
	}
	for _, m := range p.Members {
		mx := memberXML{
			ID:          clientIDToXML(m.ID),
			MemberClass: memberClassXML{Code: m.MemberClass.Code, Description: m.MemberClass.Description},
			MemberCode:  m.MemberCode,
			Name:        m.Name,
		}
		for _, s := range m.Subsystems {
			mx.Subsystems = append(mx.Subsystems, subsystemXML{SubsystemCode: s.SubsystemCode, ID: clientIDToXML(s.ID)})
		}
		doc.Members = append(doc.Members, mx)
	}
	for _, ss := range p.SecurityServers {
		sx := securityServerXML{
			Owner:          clientIDToXML(ss.Owner),
			ServerCode:     ss.ServerCode,
			Address:        ss.Address,
			AuthCertHashes: encodeAll(ss.AuthCertHashes),
		}
		for _, c := range ss.Clients {
			sx.Clients = append(sx.Clients, clientIDToXML(c))
		}
		doc.SecurityServers = append(doc.SecurityServers, sx)
	}
	for _, g := range p.GlobalGroups {
		gx := globalGroupXML{GroupCode: g.GroupCode, Description: g.Description}
		for _, m := range g.GroupMembers {
			gx.GroupMembers = append(gx.GroupMembers, clientIDToXML(m))
		}
		doc.GlobalGroups = append(doc.GlobalGroups, gx)
	}
	for _, cs := range p.CentralServices {
		cx := centralServiceXML{ServiceCode: cs.ServiceCode}
		if !cs.Implementing.IsZero() {
			impl := clientIDToXML(cs.Implementing)
			cx.Implementing = &impl
		}
		doc.CentralServices = append(doc.CentralServices, cx)
	}
	return marshal(doc)
}

// EncodePrivate serializes private parameters in the current schema version.
func EncodePrivate(p *PrivateParameters) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil private parameters")
	}
	doc := privateXML{
		InstanceIdentifier: p.InstanceIdentifier,
		ManagementService: managementServiceXML{
			AuthCertRegServiceAddress:          p.ManagementService.AuthCertRegServiceAddress,
			AuthCertRegServiceCert:             encode(p.ManagementService.AuthCertRegServiceCert),
			ManagementRequestServiceProviderID: clientIDToXML(p.ManagementService.ManagementRequestServiceProviderID),
		},
		TimeStampingIntervalSeconds: p.TimeStampingIntervalSeconds,
	}
	for _, a := range p.ConfigurationAnchors {
		ax := anchorXML{
			GeneratedAt:        a.GeneratedAt.UTC().Format(time.RFC3339),
			InstanceIdentifier: a.InstanceIdentifier,
		}
		for _, s := range a.Sources {
			ax.Sources = append(ax.Sources, anchorSourceXML{DownloadURL: s.DownloadURL, VerificationCerts: encodeAll(s.VerificationCerts)})
		}
		doc.ConfigurationAnchors = append(doc.ConfigurationAnchors, ax)
	}
	return marshal(doc)
}

func marshal(doc interface{}) ([]byte, error) {
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal configuration document")
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// ParseShared validates data against the shared parameters schema of the given version
// and decodes it. Validation failures are reported as *FormatError.
func ParseShared(data []byte, version int) (*SharedParameters, error) {
	if err := validate(KindShared, data, version); err != nil {
		return nil, err
	}
	return DecodeShared(data, version)
}

// DecodeShared decodes shared parameters that already passed validation against version.
func DecodeShared(data []byte, version int) (*SharedParameters, error) {
	var doc sharedXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, formatError(KindShared, version, 0, err.Error())
	}
	p, err := sharedFromXML(&doc)
	if err != nil {
		return nil, formatError(KindShared, version, version, err.Error())
	}
	return p, nil
}

// ParsePrivate validates data against the private parameters schema of the given version
// and decodes it. Validation failures are reported as *FormatError.
func ParsePrivate(data []byte, version int) (*PrivateParameters, error) {
	if err := validate(KindPrivate, data, version); err != nil {
		return nil, err
	}
	return DecodePrivate(data, version)
}

// DecodePrivate decodes private parameters that already passed validation against version.
func DecodePrivate(data []byte, version int) (*PrivateParameters, error) {
	var doc privateXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, formatError(KindPrivate, version, 0, err.Error())
	}
	p, err := privateFromXML(&doc)
	if err != nil {
		return nil, formatError(KindPrivate, version, version, err.Error())
	}
	return p, nil
}

// Validate checks data against the schema of a document kind in the given version.
// It first detects which registered version the document resembles and then validates
// it fully against the expected one.
func Validate(kind Kind, data []byte, version int) error {
	return validate(kind, data, version)
}

func validate(kind Kind, data []byte, version int) error {
	schema, err := LookupSchema(kind, version)
	if err != nil {
		return err
	}
	root, err := parseTree(data)
	if err != nil {
		return formatError(kind, version, 0, err.Error())
	}
	detected, err := detectVersion(kind, root)
	if err != nil {
		return formatError(kind, version, 0, err.Error())
	}
	if err := schema.validateTree(root); err != nil {
		return formatError(kind, version, detected, err.Error())
	}
	return nil
}

func formatError(kind Kind, expected, detected int, description string) *FormatError {
	return &FormatError{Kind: kind, ExpectedVersion: expected, DetectedVersion: detected, Fault: description}
}

func sharedFromXML(doc *sharedXML) (*SharedParameters, error) {
	p := &SharedParameters{
		InstanceIdentifier: doc.InstanceIdentifier,
		GlobalSettings: GlobalSettings{
			MemberClasses:        memberClassesFromXML(doc.GlobalSettings.MemberClasses),
			OcspFreshnessSeconds: doc.GlobalSettings.OcspFreshnessSeconds,
		},
	}
	var err error
	for _, s := range doc.Sources {
		src := ConfigurationSource{Address: s.Address}
		if src.InternalVerificationCerts, err = decodeAll(s.Internal); err != nil {
			return nil, err
		}
		if src.ExternalVerificationCerts, err = decodeAll(s.External); err != nil {
			return nil, err
		}
		p.Sources = append(p.Sources, src)
	}
	for _, c := range doc.ApprovedCAs {
		ca := ApprovedCA{
			Name:                   c.Name,
			AuthenticationOnly:     c.AuthenticationOnly != nil && *c.AuthenticationOnly,
			CertificateProfileInfo: c.CertificateProfileInfo,
		}
		if ca.TopCA, err = caInfoFromXML(c.TopCA); err != nil {
			return nil, err
		}
		for _, ic := range c.IntermediateCAs {
			info, err := caInfoFromXML(ic)
			if err != nil {
				return nil, err
			}
			ca.IntermediateCAs = append(ca.IntermediateCAs, info)
		}
		p.ApprovedCAs = append(p.ApprovedCAs, ca)
	}
	for _, t := range doc.ApprovedTSAs {
		cert, err := decode(t.Cert)
		if err != nil {
			return nil, err
		}
		p.ApprovedTSAs = append(p.ApprovedTSAs, ApprovedTSA{Name: t.Name, URL: t.URL, Cert: cert})
	}
	for _, mx := range doc.Members {
		id, err := clientIDFromXML(mx.ID)
		if err != nil {
			return nil, err
		}
		m := Member{
			ID:          id,
			MemberClass: MemberClass{Code: mx.MemberClass.Code, Description: mx.MemberClass.Description},
			MemberCode:  mx.MemberCode,
			Name:        mx.Name,
		}
		for _, sx := range mx.Subsystems {
			sid, err := clientIDFromXML(sx.ID)
			if err != nil {
				return nil, err
			}
			m.Subsystems = append(m.Subsystems, Subsystem{SubsystemCode: sx.SubsystemCode, ID: sid})
		}
		p.Members = append(p.Members, m)
	}
	for _, sx := range doc.SecurityServers {
		owner, err := clientIDFromXML(sx.Owner)
		if err != nil {
			return nil, err
		}
		ss := SecurityServer{Owner: owner, ServerCode: sx.ServerCode, Address: sx.Address}
		if ss.Clients, err = clientIDsFromXML(sx.Clients); err != nil {
			return nil, err
		}
		if ss.AuthCertHashes, err = decodeAll(sx.AuthCertHashes); err != nil {
			return nil, err
		}
		p.SecurityServers = append(p.SecurityServers, ss)
	}
	for _, gx := range doc.GlobalGroups {
		members, err := clientIDsFromXML(gx.GroupMembers)
		if err != nil {
			return nil, err
		}
		p.GlobalGroups = append(p.GlobalGroups, GlobalGroup{GroupCode: gx.GroupCode, Description: gx.Description, GroupMembers: members})
	}
	for _, cx := range doc.CentralServices {
		cs := CentralService{ServiceCode: cx.ServiceCode}
		if cx.Implementing != nil {
			if cs.Implementing, err = clientIDFromXML(*cx.Implementing); err != nil {
				return nil, err
			}
		}
		p.CentralServices = append(p.CentralServices, cs)
	}
	return p, nil
}

func privateFromXML(doc *privateXML) (*PrivateParameters, error) {
	provider, err := clientIDFromXML(doc.ManagementService.ManagementRequestServiceProviderID)
	if err != nil {
		return nil, err
	}
	cert, err := decode(doc.ManagementService.AuthCertRegServiceCert)
	if err != nil {
		return nil, err
	}
	p := &PrivateParameters{
		InstanceIdentifier: doc.InstanceIdentifier,
		ManagementService: ManagementService{
			AuthCertRegServiceAddress:          doc.ManagementService.AuthCertRegServiceAddress,
			AuthCertRegServiceCert:             cert,
			ManagementRequestServiceProviderID: provider,
		},
		TimeStampingIntervalSeconds: doc.TimeStampingIntervalSeconds,
	}
	for _, ax := range doc.ConfigurationAnchors {
		generatedAt, err := time.Parse(time.RFC3339, ax.GeneratedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "bad generatedAt of anchor %s", ax.InstanceIdentifier)
		}
		anchor := ConfigurationAnchor{InstanceIdentifier: ax.InstanceIdentifier, GeneratedAt: generatedAt.UTC()}
		for _, sx := range ax.Sources {
			certs, err := decodeAll(sx.VerificationCerts)
			if err != nil {
				return nil, err
			}
			anchor.Sources = append(anchor.Sources, AnchorSource{DownloadURL: sx.DownloadURL, VerificationCerts: certs})
		}
		p.ConfigurationAnchors = append(p.ConfigurationAnchors, anchor)
	}
	return p, nil
}

func clientIDToXML(id types.ClientID) clientIDXML {
	return clientIDXML{
		ObjectType:    string(id.ObjectType()),
		Instance:      id.Instance,
		MemberClass:   id.MemberClass,
		MemberCode:    id.MemberCode,
		SubsystemCode: id.SubsystemCode,
	}
}

func clientIDFromXML(x clientIDXML) (types.ClientID, error) {
	switch types.ObjectType(x.ObjectType) {
	case types.ObjectTypeMember:
		if x.SubsystemCode != "" {
			return types.ClientID{}, fmt.Errorf("member identifier %s/%s/%s carries subsystem code %s",
				x.Instance, x.MemberClass, x.MemberCode, x.SubsystemCode)
		}
		return types.NewMemberID(x.Instance, x.MemberClass, x.MemberCode), nil
	case types.ObjectTypeSubsystem:
		if x.SubsystemCode == "" {
			return types.ClientID{}, fmt.Errorf("subsystem identifier %s/%s/%s has no subsystem code",
				x.Instance, x.MemberClass, x.MemberCode)
		}
		return types.NewSubsystemID(x.Instance, x.MemberClass, x.MemberCode, x.SubsystemCode), nil
	default:
		return types.ClientID{}, fmt.Errorf("unknown object type %q", x.ObjectType)
	}
}

func clientIDsFromXML(xs []clientIDXML) ([]types.ClientID, error) {
	var ids []types.ClientID
	for _, x := range xs {
		id, err := clientIDFromXML(x)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func caInfoToXML(info CaInfo) caInfoXML {
	c := caInfoXML{Cert: encode(info.Cert)}
	for _, o := range info.OcspInfos {
		c.Ocsp = append(c.Ocsp, ocspXML{URL: o.URL, Cert: encode(o.Cert)})
	}
	return c
}

func caInfoFromXML(x caInfoXML) (CaInfo, error) {
	cert, err := decode(x.Cert)
	if err != nil {
		return CaInfo{}, err
	}
	info := CaInfo{Cert: cert}
	for _, o := range x.Ocsp {
		ocspCert, err := decode(o.Cert)
		if err != nil {
			return CaInfo{}, err
		}
		info.OcspInfos = append(info.OcspInfos, OcspInfo{URL: o.URL, Cert: ocspCert})
	}
	return info, nil
}

func memberClassesToXML(classes []MemberClass) []memberClassXML {
	var out []memberClassXML
	for _, c := range classes {
		out = append(out, memberClassXML{Code: c.Code, Description: c.Description})
	}
	return out
}

func memberClassesFromXML(classes []memberClassXML) []MemberClass {
	var out []MemberClass
	for _, c := range classes {
		out = append(out, MemberClass{Code: c.Code, Description: c.Description})
	}
	return out
}

func encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

func encodeAll(bs [][]byte) []string {
	var out []string
	for _, b := range bs {
		out = append(out, encode(b))
	}
	return out
}

func decode(s string) ([]byte, error) {
	s = stripSpaces(s)
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "bad base64 content")
	}
	return b, nil
}

func decodeAll(ss []string) ([][]byte, error) {
	var out [][]byte
	for _, s := range ss {
		b, err := decode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

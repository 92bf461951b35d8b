/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package globalconf_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/globalconf"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const legacyFault = "cvc-complex-type.2.4.a: Invalid content was found starting with element 'approvedCA'. One of '{source}' is expected."

func readTestdata(name string) []byte {
	data, err := os.ReadFile(filepath.Join("testdata", name))
	Expect(err).NotTo(HaveOccurred())
	return data
}

func sampleShared() *globalconf.SharedParameters {
	member := types.NewMemberID("EE", "GOV", "1234")
	subsystem := types.NewSubsystemID("EE", "GOV", "1234", "registry")
	gov := globalconf.MemberClass{Code: "GOV", Description: "Government"}

	return &globalconf.SharedParameters{
		InstanceIdentifier: "EE",
		Sources: []globalconf.ConfigurationSource{{
			Address:                   "cs.example.org",
			InternalVerificationCerts: [][]byte{{1, 2, 3}},
			ExternalVerificationCerts: [][]byte{{4, 5, 6}},
		}},
		ApprovedCAs: []globalconf.ApprovedCA{{
			Name:                   "EE Test CA",
			AuthenticationOnly:     true,
			CertificateProfileInfo: "ee.test.ProfileInfoProvider",
			TopCA: globalconf.CaInfo{
				Cert: []byte{7, 7, 7},
				OcspInfos: []globalconf.OcspInfo{
					{URL: "http://ocsp-b.example.org"},
					{URL: "http://ocsp-a.example.org", Cert: []byte{8}},
				},
			},
			IntermediateCAs: []globalconf.CaInfo{{Cert: []byte{9, 9}}},
		}},
		ApprovedTSAs: []globalconf.ApprovedTSA{{Name: "TSA", URL: "http://tsa.example.org", Cert: []byte{10}}},
		Members: []globalconf.Member{{
			ID:          member,
			MemberClass: gov,
			MemberCode:  "1234",
			Name:        "Ministry of Tests",
			Subsystems:  []globalconf.Subsystem{{SubsystemCode: "registry", ID: subsystem}},
		}},
		SecurityServers: []globalconf.SecurityServer{{
			Owner:          member,
			ServerCode:     "ss1",
			Address:        "ss1.example.org",
			Clients:        []types.ClientID{member, subsystem},
			AuthCertHashes: [][]byte{{0xde, 0xad, 0xbe, 0xef}},
		}},
		GlobalGroups: []globalconf.GlobalGroup{{
			GroupCode:    "owners",
			Description:  "Security server owners",
			GroupMembers: []types.ClientID{member},
		}},
		CentralServices: []globalconf.CentralService{
			{ServiceCode: "register", Implementing: subsystem},
			{ServiceCode: "unassigned"},
		},
		GlobalSettings: globalconf.GlobalSettings{
			MemberClasses:        []globalconf.MemberClass{gov},
			OcspFreshnessSeconds: 600,
		},
	}
}

func samplePrivate() *globalconf.PrivateParameters {
	return &globalconf.PrivateParameters{
		InstanceIdentifier: "EE",
		ConfigurationAnchors: []globalconf.ConfigurationAnchor{{
			InstanceIdentifier: "FI",
			GeneratedAt:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Sources: []globalconf.AnchorSource{{
				DownloadURL:       "http://cs.fi.example.org/internalconf",
				VerificationCerts: [][]byte{{1, 2, 3}},
			}},
		}},
		ManagementService: globalconf.ManagementService{
			AuthCertRegServiceAddress:          "https://cs.example.org:4002/managementservice/",
			AuthCertRegServiceCert:             []byte{5, 5},
			ManagementRequestServiceProviderID: types.NewSubsystemID("EE", "GOV", "1234", "management"),
		},
		TimeStampingIntervalSeconds: 60,
	}
}

func formatErrorOf(err error) *globalconf.FormatError {
	var fe *globalconf.FormatError
	Expect(errors.As(err, &fe)).To(BeTrue(), "not a format error: %v", err)
	return fe
}

var _ = Describe("Shared parameters", func() {
	var shared []byte

	BeforeEach(func() {
		shared = readTestdata("shared_v3.xml")
	})

	It("parses a current document", func() {
		p, err := globalconf.ParseShared(shared, globalconf.CurrentVersion)
		Expect(err).NotTo(HaveOccurred())

		Expect(p.InstanceIdentifier).To(Equal("EE"))
		Expect(p.Sources).To(HaveLen(1))
		Expect(p.Sources[0].InternalVerificationCerts).To(Equal([][]byte{{1, 2, 3}}))

		top := p.ApprovedCAs[0].TopCA
		Expect(top.OcspInfos).To(HaveLen(2))
		Expect(top.OcspInfos[0].URL).To(Equal("http://ocsp.example.org:8888"))
		Expect(top.OcspInfos[1].URL).To(Equal("http://ocsp-backup.example.org:8888"))
		Expect(top.OcspInfos[1].Cert).To(BeNil())
		Expect(p.ApprovedCAs[0].IntermediateCAs).To(HaveLen(1))

		Expect(p.Members).To(HaveLen(1))
		Expect(p.Members[0].ID).To(Equal(types.NewMemberID("EE", "GOV", "1234")))
		Expect(p.Members[0].Subsystems).To(Equal([]globalconf.Subsystem{
			{SubsystemCode: "registry", ID: types.NewSubsystemID("EE", "GOV", "1234", "registry")},
		}))

		Expect(p.SecurityServers[0].AuthCertHashes).To(Equal([][]byte{{0xde, 0xad, 0xbe, 0xef}}))
		Expect(p.SecurityServers[0].Clients).To(ConsistOf(types.NewSubsystemID("EE", "GOV", "1234", "registry")))
		Expect(p.CentralServices[0].Implementing.IsSubsystem()).To(BeTrue())
		Expect(p.CentralServices[1].Implementing.IsZero()).To(BeTrue())
		Expect(p.GlobalSettings.OcspFreshnessSeconds).To(Equal(600))
	})

	It("survives an encode and parse cycle", func() {
		in := sampleShared()
		data, err := globalconf.EncodeShared(in)
		Expect(err).NotTo(HaveOccurred())
		Expect(globalconf.Validate(globalconf.KindShared, data, globalconf.CurrentVersion)).To(Succeed())

		out, err := globalconf.ParseShared(data, globalconf.CurrentVersion)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in), spew.Sdump(out))
	})

	It("rejects a nil document", func() {
		_, err := globalconf.EncodeShared(nil)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a legacy document", func() {
		p, err := globalconf.ParseShared(readTestdata("shared_v2.xml"), globalconf.CurrentVersion)
		Expect(p).To(BeNil())

		fe := formatErrorOf(err)
		Expect(fe.Fault).To(Equal(legacyFault))
		Expect(fe.ExpectedVersion).To(Equal(3))
		Expect(fe.DetectedVersion).To(Equal(2))
		Expect(fe.Legacy()).To(BeTrue())
		Expect(fe.Error()).To(ContainSubstring("found version 2"))
	})

	It("parses a legacy document when the legacy version is expected", func() {
		p, err := globalconf.ParseShared(readTestdata("shared_v2.xml"), 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Sources).To(BeEmpty())
		Expect(p.Members).To(HaveLen(1))
	})

	DescribeTable("reports validation faults",
		func(old, replacement, expectedFault string) {
			data := []byte(strings.Replace(string(shared), old, replacement, 1))
			_, err := globalconf.ParseShared(data, globalconf.CurrentVersion)
			fe := formatErrorOf(err)
			Expect(fe.Fault).To(Equal(expectedFault))
			Expect(fe.Legacy()).To(BeFalse())
		},
		Entry("non numeric integer",
			"<ocspFreshnessSeconds>600", "<ocspFreshnessSeconds>soon",
			"cvc-datatype-valid.1.2.1: 'soon' is not a valid value for 'integer'."),
		Entry("unknown object type",
			`<owner objectType="MEMBER">`, `<owner objectType="PERSON">`,
			"cvc-enumeration-valid: Value 'PERSON' is not facet-valid with respect to enumeration '[MEMBER, SUBSYSTEM]'. It must be a value from the enumeration."),
		Entry("missing object type",
			`<owner objectType="MEMBER">`, `<owner>`,
			"cvc-complex-type.4: Attribute 'objectType' must appear on element 'owner'."),
		Entry("bad boolean",
			"<authenticationOnly>false", "<authenticationOnly>maybe",
			"cvc-datatype-valid.1.2.1: 'maybe' is not a valid value for 'boolean'."),
		Entry("trailing element",
			"</globalSettings>", "</globalSettings><extra/>",
			"cvc-complex-type.2.4.d: Invalid content was found starting with element 'extra'. No child element is expected at this point."),
		Entry("subsystem identifier without subsystem code",
			`<owner objectType="MEMBER">`, `<owner objectType="SUBSYSTEM">`,
			"subsystem identifier EE/GOV/1234 has no subsystem code"),
	)

	It("reports an incomplete document", func() {
		data := []byte(`<conf xmlns="urn:globalconf:xsd:conf"><instanceIdentifier>EE</instanceIdentifier>` +
			`<source><address>cs</address></source></conf>`)
		_, err := globalconf.ParseShared(data, globalconf.CurrentVersion)
		Expect(formatErrorOf(err).Fault).To(Equal("cvc-complex-type.2.4.b: The content of element 'conf' is not complete. " +
			"One of '{source, approvedCA, approvedTSA, member, securityServer, globalGroup, centralService, globalSettings}' is expected."))
	})

	It("reports an unknown root element", func() {
		_, err := globalconf.ParseShared([]byte(`<foo xmlns="urn:globalconf:xsd:conf"/>`), globalconf.CurrentVersion)
		fe := formatErrorOf(err)
		Expect(fe.Fault).To(Equal("cvc-elt.1.a: Cannot find the declaration of element 'foo'."))
		Expect(fe.DetectedVersion).To(Equal(0))
	})

	It("reports malformed content", func() {
		_, err := globalconf.ParseShared([]byte("<conf"), globalconf.CurrentVersion)
		Expect(formatErrorOf(err).Fault).NotTo(BeEmpty())
	})
})

var _ = Describe("Private parameters", func() {
	It("parses a current document", func() {
		p, err := globalconf.ParsePrivate(readTestdata("private_v3.xml"), globalconf.CurrentVersion)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.InstanceIdentifier).To(Equal("EE"))
		Expect(p.ConfigurationAnchors).To(HaveLen(1))
		Expect(p.ConfigurationAnchors[0].GeneratedAt).To(BeTemporally("==", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
		Expect(p.ManagementService.ManagementRequestServiceProviderID.SubsystemCode).To(Equal("management"))
		Expect(p.TimeStampingIntervalSeconds).To(Equal(60))
	})

	It("survives an encode and parse cycle", func() {
		in := samplePrivate()
		data, err := globalconf.EncodePrivate(in)
		Expect(err).NotTo(HaveOccurred())

		out, err := globalconf.ParsePrivate(data, globalconf.CurrentVersion)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in), spew.Sdump(out))
	})

	It("is not a valid shared document", func() {
		_, err := globalconf.ParseShared(readTestdata("private_v3.xml"), globalconf.CurrentVersion)
		Expect(formatErrorOf(err).DetectedVersion).To(Equal(0))
	})
})

var _ = Describe("Version detection", func() {
	DescribeTable("detects the schema version from the document structure",
		func(kind globalconf.Kind, file string, expected int) {
			version, err := globalconf.DetectVersion(kind, readTestdata(file))
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(expected))
		},
		Entry("current shared", globalconf.KindShared, "shared_v3.xml", 3),
		Entry("legacy shared", globalconf.KindShared, "shared_v2.xml", 2),
		Entry("private", globalconf.KindPrivate, "private_v3.xml", 3),
		Entry("private as shared", globalconf.KindShared, "private_v3.xml", 0),
	)

	It("fails on a foreign root element", func() {
		_, err := globalconf.DetectVersion(globalconf.KindShared, []byte(`<conf xmlns="urn:other"/>`))
		Expect(err).To(MatchError("cvc-elt.1.a: Cannot find the declaration of element 'conf'."))
	})

	It("lists registered versions highest first", func() {
		Expect(globalconf.SupportedVersions(globalconf.KindShared)).To(Equal([]int{3, 2}))
		Expect(globalconf.SupportedVersions(globalconf.KindPrivate)).To(Equal([]int{3}))
	})

	It("has no schema for unknown versions", func() {
		_, err := globalconf.LookupSchema(globalconf.KindPrivate, 2)
		Expect(err).To(MatchError("no schema for private parameters version 2"))

		s, err := globalconf.LookupSchema(globalconf.KindShared, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Validate(readTestdata("shared_v2.xml"))).To(Succeed())
	})
})

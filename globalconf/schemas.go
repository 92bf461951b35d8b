/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package globalconf

// CurrentVersion is the schema version produced by the encoders and expected by default.
const CurrentVersion = 3

func one(name string, value valueType) element {
	return element{name: name, min: 1, max: 1, value: value}
}

func optional(name string, value valueType) element {
	return element{name: name, min: 0, max: 1, value: value}
}

func many(name string, value valueType) element {
	return element{name: name, min: 0, max: unbounded, value: value}
}

func group(name string, min, max int, children ...element) element {
	return element{name: name, min: min, max: max, value: complexValue, children: children}
}

func clientIDElement(name string, min, max int) element {
	e := group(name, min, max,
		one("instance", stringValue),
		one("memberClass", stringValue),
		one("memberCode", stringValue),
		optional("subsystemCode", stringValue),
	)
	e.attrs = []attribute{{name: "objectType", required: true, enum: []string{"MEMBER", "SUBSYSTEM"}}}
	return e
}

func caInfo(name string, min, max int) element {
	return group(name, min, max,
		one("cert", base64Value),
		group("ocsp", 0, unbounded,
			one("url", stringValue),
			optional("cert", base64Value),
		),
	)
}

func sharedParticles(withSources bool) []element {
	particles := []element{one("instanceIdentifier", stringValue)}
	if withSources {
		particles = append(particles, group("source", 1, unbounded,
			one("address", stringValue),
			many("internalVerificationCert", base64Value),
			many("externalVerificationCert", base64Value),
		))
	}
	return append(particles,
		group("approvedCA", 0, unbounded,
			one("name", stringValue),
			optional("authenticationOnly", booleanValue),
			caInfo("topCA", 1, 1),
			caInfo("intermediateCA", 0, unbounded),
			one("certificateProfileInfo", stringValue),
		),
		group("approvedTSA", 0, unbounded,
			one("name", stringValue),
			one("url", stringValue),
			one("cert", base64Value),
		),
		group("member", 0, unbounded,
			clientIDElement("id", 1, 1),
			group("memberClass", 1, 1,
				one("code", stringValue),
				one("description", stringValue),
			),
			one("memberCode", stringValue),
			one("name", stringValue),
			group("subsystem", 0, unbounded,
				one("subsystemCode", stringValue),
				clientIDElement("id", 1, 1),
			),
		),
		group("securityServer", 0, unbounded,
			clientIDElement("owner", 1, 1),
			one("serverCode", stringValue),
			optional("address", stringValue),
			clientIDElement("client", 0, unbounded),
			many("authCertHash", base64Value),
		),
		group("globalGroup", 0, unbounded,
			one("groupCode", stringValue),
			one("description", stringValue),
			clientIDElement("groupMember", 0, unbounded),
		),
		group("centralService", 0, unbounded,
			one("serviceCode", stringValue),
			clientIDElement("implementingService", 0, 1),
		),
		group("globalSettings", 1, 1,
			group("memberClass", 0, unbounded,
				one("code", stringValue),
				one("description", stringValue),
			),
			one("ocspFreshnessSeconds", integerValue),
		),
	)
}

func privateParticles() []element {
	return []element{
		one("instanceIdentifier", stringValue),
		group("configurationAnchor", 0, unbounded,
			one("generatedAt", dateTimeValue),
			one("instanceIdentifier", stringValue),
			group("source", 1, unbounded,
				one("downloadURL", stringValue),
				element{name: "verificationCert", min: 1, max: unbounded, value: base64Value},
			),
		),
		group("managementService", 1, 1,
			one("authCertRegServiceAddress", stringValue),
			one("authCertRegServiceCert", base64Value),
			clientIDElement("managementRequestServiceProviderId", 1, 1),
		),
		one("timeStampingIntervalSeconds", integerValue),
	}
}

func init() {
	// Version 2 shared parameters have no configuration sources. The private document did
	// not change between versions 2 and 3, so only the current version is registered for it.
	register(&Schema{Kind: KindShared, Version: 2, root: group(rootElement, 1, 1, sharedParticles(false)...)})
	register(&Schema{Kind: KindShared, Version: 3, root: group(rootElement, 1, 1, sharedParticles(true)...)})
	register(&Schema{Kind: KindPrivate, Version: 3, root: group(rootElement, 1, 1, privateParticles()...)})
}

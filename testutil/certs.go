/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package testutil

import (
	"encoding/pem"
	"strings"
	"testing"

	"github.com/hyperledger/fabric-x-common/common/crypto/tlsgen"
	"github.com/stretchr/testify/require"
)

// CreateCertificate issues a certificate for the given name from a fresh CA and returns
// its DER encoding.
func CreateCertificate(t *testing.T, name string) []byte {
	der, _ := pem.Decode(CreateCertificatePEM(t, name))
	require.NotNil(t, der)
	return der.Bytes
}

// CreateCertificatePEM is like CreateCertificate but returns the PEM encoding.
func CreateCertificatePEM(t *testing.T, name string) []byte {
	ca, err := tlsgen.NewCA()
	require.NoError(t, err)
	kp, err := ca.NewServerCertKeyPair(strings.ReplaceAll(name, " ", "-"))
	require.NoError(t, err)
	return kp.Cert
}

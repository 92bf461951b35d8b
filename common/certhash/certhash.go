/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package certhash computes the fingerprints that stand in for authentication certificates
// in the shared parameters. Every participant of a federation must hash identical
// certificate bytes to an identical fingerprint, so the algorithm is fixed per network.
package certhash

import (
	"crypto/x509"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/globalconf/common/utils"
	"github.com/hyperledger/fabric-lib-go/bccsp"
	"github.com/hyperledger/fabric-lib-go/bccsp/sw"
)

// DefaultAlgorithm is the fingerprint algorithm used when none is configured.
const DefaultAlgorithm = bccsp.SHA256

// Hasher maps certificate bytes to a fixed length fingerprint.
type Hasher struct {
	csp       bccsp.BCCSP
	opts      bccsp.HashOpts
	algorithm string
}

// New creates a Hasher backed by the software crypto provider.
func New(algorithm string) (*Hasher, error) {
	csp, err := sw.NewDefaultSecurityLevelWithKeystore(sw.NewDummyKeyStore())
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "cannot create crypto provider"), utils.ErrCrypto)
	}
	return NewWithProvider(csp, algorithm)
}

// NewWithProvider creates a Hasher that delegates hashing to csp.
func NewWithProvider(csp bccsp.BCCSP, algorithm string) (*Hasher, error) {
	if csp == nil {
		return nil, errors.Mark(errors.New("crypto provider is nil"), utils.ErrCrypto)
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	opts, err := bccsp.GetHashOpt(algorithm)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "unsupported hash function: %s", algorithm), utils.ErrCrypto)
	}
	return &Hasher{csp: csp, opts: opts, algorithm: algorithm}, nil
}

// Algorithm returns the name of the hash function in use.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Hash returns the fingerprint of a certificate. The input must be a DER encoded X.509
// certificate (PEM is accepted as well); the fingerprint is computed over the DER bytes.
// Malformed input and provider failures are reported as ErrCrypto.
func (h *Hasher) Hash(cert []byte) ([]byte, error) {
	if len(cert) == 0 {
		return nil, errors.Mark(errors.New("certificate is empty"), utils.ErrCrypto)
	}

	parsed, err := x509.ParseCertificate(utils.CertificateDER(cert))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "cannot parse cert"), utils.ErrCrypto)
	}

	digest, err := h.csp.Hash(parsed.Raw, h.opts)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed computing %s hash", h.algorithm), utils.ErrCrypto)
	}
	if len(digest) == 0 {
		return nil, errors.Mark(errors.Newf("%s hash is empty", h.algorithm), utils.ErrCrypto)
	}

	return digest, nil
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package confdir

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io/fs"
	"os"
	"time"

	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/pkg/errors"
)

// Metadata describes the provenance of a stored document. It is kept next to the document
// in a file with the same name plus MetadataSuffix.
type Metadata struct {
	ContentIdentifier  string    `json:"contentIdentifier"`
	InstanceIdentifier string    `json:"instanceIdentifier"`
	ContentFileName    string    `json:"contentFileName"`
	ExpirationDate     time.Time `json:"expirationDate"`
	GeneratedAt        time.Time `json:"generatedAt"`
	ContentHash        string    `json:"contentHash,omitempty"`
}

// ContentIdentifier returns the identifier used for a document kind in metadata.
func ContentIdentifier(kind globalconf.Kind) string {
	if kind == globalconf.KindPrivate {
		return "PRIVATE-PARAMETERS"
	}
	return "SHARED-PARAMETERS"
}

// ContentHash returns the base64 SHA-256 digest of stored content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Metadata returns the metadata of a stored document, or nil when the document has none.
func (d *Directory) Metadata(instance string, kind globalconf.Kind) (*Metadata, error) {
	path, err := d.documentPath(instance, kind)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path + MetadataSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read metadata of %s", path)
	}
	md := &Metadata{}
	if err := json.Unmarshal(data, md); err != nil {
		return nil, errors.Wrapf(err, "failed to parse metadata of %s", path)
	}
	return md, nil
}

// IsExpired reports whether a stored document expired at the given time. A document
// without metadata or without an expiration date never expires.
func (d *Directory) IsExpired(instance string, kind globalconf.Kind, now time.Time) (bool, error) {
	md, err := d.Metadata(instance, kind)
	if err != nil || md == nil {
		return false, err
	}
	if md.ExpirationDate.IsZero() {
		return false, nil
	}
	return !now.Before(md.ExpirationDate), nil
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package confdir

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/pkg/errors"
)

// Save stores a document of an instance together with its metadata. The content is
// validated first; both files are replaced atomically, content before metadata.
// The stored metadata is returned with the content fields filled in.
func (d *Directory) Save(instance string, kind globalconf.Kind, content []byte, md Metadata) (*Metadata, error) {
	path, err := d.documentPath(instance, kind)
	if err != nil {
		return nil, err
	}
	if err := globalconf.Validate(kind, content, d.version); err != nil {
		return nil, errors.WithMessagef(err, "refusing to store %s parameters of %s", kind, instance)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create instance directory for %s", instance)
	}
	if err := writeAtomically(path, content); err != nil {
		return nil, err
	}

	md.ContentIdentifier = ContentIdentifier(kind)
	md.InstanceIdentifier = instance
	md.ContentFileName = FileName(kind)
	md.ContentHash = ContentHash(content)
	mdBytes, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}
	if err := writeAtomically(path+MetadataSuffix, mdBytes); err != nil {
		return nil, err
	}

	d.logger.Infof("Stored %s parameters of instance %s in %s", kind, instance, path)
	return &md, nil
}

func writeAtomically(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrapf(err, "failed to chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

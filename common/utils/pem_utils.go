/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"bytes"
	"encoding/pem"
	"fmt"
	"os"
)

func WritePEMToFile(path string, pemType string, bytes []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("err: %s, failed creating %s to %s", err, pemType, path)
	}
	defer file.Close()

	err = pem.Encode(file, &pem.Block{Type: pemType, Bytes: bytes})
	if err != nil {
		return fmt.Errorf("err: %s, failed writing %s to %s", err, pemType, path)
	}

	return nil
}

// CertificateDER returns the DER bytes of a certificate given either in PEM or in DER form.
// Bytes that do not look like PEM are returned unchanged.
func CertificateDER(raw []byte) []byte {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("-----BEGIN")) {
		return raw
	}
	pbl, _ := pem.Decode(bytes.TrimSpace(raw))
	if pbl == nil {
		return raw
	}
	return pbl.Bytes
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadCertificate reads a PEM encoded certificate and returns its DER bytes.
func ReadCertificate(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("failed reading pem file, path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading a pem file from %s, err: %v", path, err)
	}
	pbl, _ := pem.Decode(data)
	if pbl == nil {
		return nil, errors.Errorf("no pem content for file %s", path)
	}
	if pbl.Type != "CERTIFICATE" {
		return nil, errors.Errorf("unexpected pem type, got a %s", strings.ToLower(pbl.Type))
	}

	return pbl.Bytes, nil
}

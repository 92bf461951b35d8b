/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import "errors"

var (
	// ErrDataAccess marks failures of a data source gateway. A generation cycle that hits it
	// is aborted and retried on the next cycle.
	ErrDataAccess = errors.New("data access failure")

	// ErrCrypto marks failures to compute a certificate fingerprint.
	ErrCrypto = errors.New("crypto failure")
)

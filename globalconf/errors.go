/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package globalconf

import "fmt"

// FormatError reports a stored document that does not conform to the expected schema.
// Fault carries the validation fault description.
type FormatError struct {
	Path            string
	Kind            Kind
	ExpectedVersion int
	// DetectedVersion is the schema version the document structurally resembles, 0 if none.
	DetectedVersion int
	Fault           string
}

func (e *FormatError) Error() string {
	where := string(e.Kind) + " parameters"
	if e.Path != "" {
		where = e.Path
	}
	if e.DetectedVersion != 0 && e.DetectedVersion != e.ExpectedVersion {
		return fmt.Sprintf("invalid configuration %s (expected schema version %d, found version %d): %s",
			where, e.ExpectedVersion, e.DetectedVersion, e.Fault)
	}
	return fmt.Sprintf("invalid configuration %s (expected schema version %d): %s", where, e.ExpectedVersion, e.Fault)
}

// Legacy reports whether the document was recognised as an older schema version.
func (e *FormatError) Legacy() bool {
	return e.DetectedVersion != 0 && e.DetectedVersion < e.ExpectedVersion
}

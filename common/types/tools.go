/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package types

import (
	"strings"

	"github.com/pkg/errors"
)

// ParseClientID parses the representation produced by ClientID.String,
// e.g. "MEMBER:EE/GOV/1234" or "SUBSYSTEM:EE/GOV/1234/sub".
func ParseClientID(s string) (ClientID, error) {
	objectType, path, found := strings.Cut(s, ":")
	if !found {
		return ClientID{}, errors.Errorf("client id %q has no object type", s)
	}
	parts := strings.Split(path, "/")
	switch ObjectType(objectType) {
	case ObjectTypeMember:
		if len(parts) != 3 {
			return ClientID{}, errors.Errorf("member id %q must have 3 parts, got %d", s, len(parts))
		}
		return NewMemberID(parts[0], parts[1], parts[2]), nil
	case ObjectTypeSubsystem:
		if len(parts) != 4 {
			return ClientID{}, errors.Errorf("subsystem id %q must have 4 parts, got %d", s, len(parts))
		}
		if parts[3] == "" {
			return ClientID{}, errors.Errorf("subsystem id %q has an empty subsystem code", s)
		}
		return NewSubsystemID(parts[0], parts[1], parts[2], parts[3]), nil
	default:
		return ClientID{}, errors.Errorf("unknown object type %q", objectType)
	}
}

// ClientIDsEqual compares two lists of identifiers element by element.
func ClientIDsEqual(a, b []ClientID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

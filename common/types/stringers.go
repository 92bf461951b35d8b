/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package types

import (
	"fmt"
	"strings"
)

func (c ClientID) String() string {
	if c.IsZero() {
		return "<nil>"
	}
	parts := []string{c.Instance, c.MemberClass, c.MemberCode}
	if c.IsSubsystem() {
		parts = append(parts, c.SubsystemCode)
	}
	return fmt.Sprintf("%s:%s", c.ObjectType(), strings.Join(parts, "/"))
}

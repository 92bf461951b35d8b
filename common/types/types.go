/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package types

// ObjectType tells a member identifier apart from a subsystem identifier.
type ObjectType string

const (
	ObjectTypeMember    ObjectType = "MEMBER"
	ObjectTypeSubsystem ObjectType = "SUBSYSTEM"
)

// ClientID identifies a member or a subsystem of a member within a federation instance.
// It is comparable and is used as a map key: two identifiers denote the same member
// when instance, member class and member code are equal and both have no subsystem code.
// An empty SubsystemCode means the identifier denotes a member.
type ClientID struct {
	Instance      string
	MemberClass   string
	MemberCode    string
	SubsystemCode string
}

// NewMemberID creates the identifier of a member.
func NewMemberID(instance, memberClass, memberCode string) ClientID {
	return ClientID{Instance: instance, MemberClass: memberClass, MemberCode: memberCode}
}

// NewSubsystemID creates the identifier of a subsystem.
func NewSubsystemID(instance, memberClass, memberCode, subsystemCode string) ClientID {
	return ClientID{Instance: instance, MemberClass: memberClass, MemberCode: memberCode, SubsystemCode: subsystemCode}
}

// IsSubsystem reports whether the identifier carries a subsystem code.
func (c ClientID) IsSubsystem() bool {
	return c.SubsystemCode != ""
}

// IsZero reports whether the identifier is unset.
func (c ClientID) IsZero() bool {
	return c == ClientID{}
}

// ObjectType returns MEMBER or SUBSYSTEM.
func (c ClientID) ObjectType() ObjectType {
	if c.IsSubsystem() {
		return ObjectTypeSubsystem
	}
	return ObjectTypeMember
}

// MemberID returns the identifier of the member owning this identifier.
// For a member identifier it returns the identifier itself.
func (c ClientID) MemberID() ClientID {
	return NewMemberID(c.Instance, c.MemberClass, c.MemberCode)
}

// Logger is the logging interface the components depend on.
// *flogging.FabricLogger satisfies it.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Panicf(template string, args ...interface{})
}

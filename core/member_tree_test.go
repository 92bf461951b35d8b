/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package core_test

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/core"
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger-labs/globalconf/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func memberRow(code, name string) core.FlattenedClient {
	return core.FlattenedClient{
		Instance:               "EE",
		MemberClassCode:        "GOV",
		MemberClassDescription: "Government",
		MemberCode:             code,
		MemberName:             name,
	}
}

func subsystemRow(memberCode, subsystemCode string) core.FlattenedClient {
	row := memberRow(memberCode, "")
	row.SubsystemCode = subsystemCode
	return row
}

func TestBuildMembersDropsOrphans(t *testing.T) {
	logger, logs := testutil.CreateObservedLogger(t, zapcore.DebugLevel)
	rows := []core.FlattenedClient{
		memberRow("1234", "Ministry"),
		subsystemRow("1234", "registry"),
		subsystemRow("1234", "portal"),
		subsystemRow("9999", "orphan"),
	}

	members := core.BuildMembers(rows, logger)
	require.Len(t, members, 1, spew.Sdump(members))

	m := members[0]
	assert.Equal(t, types.NewMemberID("EE", "GOV", "1234"), m.ID)
	assert.Equal(t, globalconf.MemberClass{Code: "GOV", Description: "Government"}, m.MemberClass)
	assert.Equal(t, "1234", m.MemberCode)
	assert.Equal(t, "Ministry", m.Name)
	assert.Equal(t, []globalconf.Subsystem{
		{SubsystemCode: "registry", ID: types.NewSubsystemID("EE", "GOV", "1234", "registry")},
		{SubsystemCode: "portal", ID: types.NewSubsystemID("EE", "GOV", "1234", "portal")},
	}, m.Subsystems)

	for _, member := range members {
		for _, s := range member.Subsystems {
			assert.NotEqual(t, "orphan", s.SubsystemCode)
		}
	}

	dropped := logs.FilterMessageSnippet("Dropping subsystem").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, zapcore.DebugLevel, dropped[0].Level)
	assert.Contains(t, dropped[0].Message, "SUBSYSTEM:EE/GOV/9999/orphan")
}

func TestBuildMembersIsIndependentOfSubsystemPlacement(t *testing.T) {
	member := memberRow("1234", "Ministry")
	subsystems := []core.FlattenedClient{
		subsystemRow("1234", "a"),
		subsystemRow("1234", "b"),
		subsystemRow("1234", "c"),
	}
	expected := core.BuildMembers(append([]core.FlattenedClient{member}, subsystems...), nil)

	for pos := 0; pos <= len(subsystems); pos++ {
		var rows []core.FlattenedClient
		rows = append(rows, subsystems[:pos]...)
		rows = append(rows, member)
		rows = append(rows, subsystems[pos:]...)

		assert.Equal(t, expected, core.BuildMembers(rows, nil), "member row at position %d", pos)
	}
}

func TestBuildMembersInterleaved(t *testing.T) {
	rows := []core.FlattenedClient{
		subsystemRow("2", "x"),
		memberRow("1", "First"),
		subsystemRow("1", "y"),
		memberRow("3", "Third"),
		memberRow("2", "Second"),
		subsystemRow("1", "z"),
		subsystemRow("2", "w"),
	}

	members := core.BuildMembers(rows, nil)
	require.Len(t, members, 3)
	assert.Equal(t, []string{"First", "Third", "Second"}, []string{members[0].Name, members[1].Name, members[2].Name})

	codes := func(m globalconf.Member) []string {
		var out []string
		for _, s := range m.Subsystems {
			out = append(out, s.SubsystemCode)
		}
		return out
	}
	assert.Equal(t, []string{"y", "z"}, codes(members[0]))
	assert.Empty(t, members[1].Subsystems)
	assert.Equal(t, []string{"x", "w"}, codes(members[2]))
}

func TestBuildMembersKeysOnWholeIdentifier(t *testing.T) {
	other := memberRow("1234", "Other instance")
	other.Instance = "FI"
	otherClass := subsystemRow("1234", "com")
	otherClass.MemberClassCode = "COM"

	rows := []core.FlattenedClient{
		memberRow("1234", "Ministry"),
		other,
		subsystemRow("1234", "registry"),
		otherClass,
	}

	members := core.BuildMembers(rows, nil)
	require.Len(t, members, 2)
	require.Len(t, members[0].Subsystems, 1)
	assert.Equal(t, "registry", members[0].Subsystems[0].SubsystemCode)
	assert.Empty(t, members[1].Subsystems)
}

func TestBuildMembersEmpty(t *testing.T) {
	assert.Empty(t, core.BuildMembers(nil, nil))
	assert.Empty(t, core.BuildMembers([]core.FlattenedClient{subsystemRow("1", "orphan")}, nil))
}

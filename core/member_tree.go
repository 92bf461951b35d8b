/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package core

import (
	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/globalconf"
)

// BuildMembers reconstructs the member hierarchy from the flattened client view.
//
// Members are emitted in the order of their rows and subsystems in the order of their
// rows, wherever those appear relative to the member row. Subsystems whose member has no
// row are dropped.
func BuildMembers(rows []FlattenedClient, logger types.Logger) []globalconf.Member {
	subsystems := make(map[types.ClientID][]globalconf.Subsystem)
	for _, row := range rows {
		if row.SubsystemCode == "" {
			continue
		}
		id := row.ClientID()
		subsystems[id.MemberID()] = append(subsystems[id.MemberID()], globalconf.Subsystem{
			SubsystemCode: row.SubsystemCode,
			ID:            id,
		})
	}

	var members []globalconf.Member
	attached := make(map[types.ClientID]bool)
	for _, row := range rows {
		if row.SubsystemCode != "" {
			continue
		}
		id := row.ClientID()
		member := globalconf.Member{
			ID:          id,
			MemberClass: globalconf.MemberClass{Code: row.MemberClassCode, Description: row.MemberClassDescription},
			MemberCode:  row.MemberCode,
			Name:        row.MemberName,
		}
		// A duplicated member row gets its own copy of the subsystem list.
		if subs := subsystems[id]; len(subs) > 0 {
			member.Subsystems = append([]globalconf.Subsystem(nil), subs...)
		}
		attached[id] = true
		members = append(members, member)
	}

	if logger != nil {
		for memberID, subs := range subsystems {
			if !attached[memberID] {
				for _, s := range subs {
					logger.Debugf("Dropping subsystem %s: member %s has no row", s.ID, memberID)
				}
			}
		}
	}
	return members
}

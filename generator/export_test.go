/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package generator

import "time"

func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

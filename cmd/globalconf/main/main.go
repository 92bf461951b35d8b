/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"os"

	cli "github.com/hyperledger-labs/globalconf/cmd/globalconf"
)

func main() {
	if err := cli.NewCLI(os.Stdout).Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

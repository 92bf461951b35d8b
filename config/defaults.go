/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"time"

	"github.com/hyperledger-labs/globalconf/common/certhash"
)

const DefaultLogSpec = "info"

var DefaultGenerationParams = GenerationConfig{
	Interval:      time.Minute,
	Validity:      10 * time.Minute,
	HashAlgorithm: certhash.DefaultAlgorithm,
}

var DefaultMonitoringParams = MonitoringConfig{
	ListenAddress: "127.0.0.1",
}

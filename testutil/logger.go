/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package testutil

import (
	"testing"

	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func CreateLogger(t *testing.T, i int) *flogging.FabricLogger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level.SetLevel(zapcore.InfoLevel)
	logger, _ := logConfig.Build()
	logger = logger.With(zap.String("t", t.Name())).With(zap.Int64("id", int64(i)))
	fabricLogger := flogging.NewFabricLogger(logger)
	return fabricLogger
}

func CreateLoggerForModule(t *testing.T, name string, level zapcore.Level) *flogging.FabricLogger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level.SetLevel(level)
	logger, _ := logConfig.Build()
	logger = logger.With(zap.String("t", t.Name())).With(zap.String("m", name))
	fabricLogger := flogging.NewFabricLogger(logger)
	return fabricLogger
}

// CreateObservedLogger returns a logger whose entries at or above level are recorded
// in the returned observer.
func CreateObservedLogger(t *testing.T, level zapcore.Level) (*flogging.FabricLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	logger := zap.New(core).With(zap.String("t", t.Name()))
	return flogging.NewFabricLogger(logger), logs
}

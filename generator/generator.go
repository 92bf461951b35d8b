/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package generator periodically assembles shared parameters and publishes them into the
// configuration directory.
package generator

import (
	"context"
	"time"

	"github.com/hyperledger-labs/globalconf/common/confdir"
	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/core"
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger-labs/globalconf/ledger"
	"github.com/pkg/errors"
)

//go:generate counterfeiter -o mocks/assembler.go . Assembler

// Assembler builds one shared parameters document.
type Assembler interface {
	Assemble(ctx context.Context) (*globalconf.SharedParameters, error)
}

// Generator publishes assembled documents. Every published document is recorded in the
// ledger when one is set.
type Generator struct {
	assembler Assembler
	directory *confdir.Directory
	ledger    *ledger.GenerationLedger
	validity  time.Duration
	logger    types.Logger
	now       func() time.Time
}

func New(assembler Assembler, directory *confdir.Directory, l *ledger.GenerationLedger, validity time.Duration, logger types.Logger) *Generator {
	return &Generator{
		assembler: assembler,
		directory: directory,
		ledger:    l,
		validity:  validity,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate runs one generation: assemble, encode, store and record. Nothing is stored
// when any step before storing fails.
func (g *Generator) Generate(ctx context.Context) (*ledger.Generation, error) {
	p, err := g.assembler.Assemble(ctx)
	if err != nil {
		return nil, err
	}
	content, err := globalconf.EncodeShared(p)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to encode shared parameters")
	}

	now := g.now().UTC().Truncate(time.Second)
	md := confdir.Metadata{GeneratedAt: now}
	if g.validity > 0 {
		md.ExpirationDate = now.Add(g.validity)
	}
	stored, err := g.directory.Save(p.InstanceIdentifier, globalconf.KindShared, content, md)
	if err != nil {
		return nil, err
	}
	if err := g.directory.SetInstanceIdentifier(p.InstanceIdentifier); err != nil {
		return nil, err
	}

	generation := ledger.Generation{
		Instance:    p.InstanceIdentifier,
		FileName:    stored.ContentFileName,
		ContentHash: stored.ContentHash,
		Size:        len(content),
		GeneratedAt: stored.GeneratedAt,
		ExpiresAt:   stored.ExpirationDate,
	}
	if g.ledger != nil {
		if generation, err = g.ledger.Append(generation); err != nil {
			return nil, err
		}
	}
	g.logger.Infof("Published shared parameters of instance %s (%d bytes, hash %s)", generation.Instance, generation.Size, generation.ContentHash)
	return &generation, nil
}

// Run generates once immediately and then on every tick of interval until ctx is done.
// A failed generation is logged and retried on the next tick.
func (g *Generator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		g.logger.Panicf("Generation interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		g.runOnce(ctx)
		select {
		case <-ctx.Done():
			g.logger.Infof("Stopped generating shared parameters")
			return
		case <-ticker.C:
		}
	}
}

func (g *Generator) runOnce(ctx context.Context) {
	_, err := g.Generate(ctx)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrAssemblyInProgress):
		g.logger.Debugf("Skipping generation: %v", err)
	case ctx.Err() != nil:
	default:
		g.logger.Errorf("Generation failed, retrying in the next cycle: %v", err)
	}
}

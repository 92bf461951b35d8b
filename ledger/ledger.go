/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ledger records every shared parameters document the generator publishes.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	generationPrefix = byte(0)
	metaPrefix       = byte(1)
)

// heightKey holds the next sequence number so that it survives pruning every generation.
var heightKey = []byte{metaPrefix, 'h'}

// Generation describes one published document.
type Generation struct {
	Sequence    uint64    `json:"sequence"`
	Instance    string    `json:"instance"`
	FileName    string    `json:"fileName"`
	ContentHash string    `json:"contentHash"`
	Size        int       `json:"size"`
	GeneratedAt time.Time `json:"generatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// GenerationLedger is an append only log of generations kept in LevelDB.
type GenerationLedger struct {
	db     *leveldb.DB
	logger types.Logger

	lock    sync.Mutex
	nextSeq uint64
	// appended is closed and replaced on every append.
	appended chan struct{}
}

// Open opens or creates the ledger at path.
func Open(path string, logger types.Logger) (*GenerationLedger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ledger %s", path)
	}
	l := &GenerationLedger{db: db, logger: logger, appended: make(chan struct{})}

	if l.nextSeq, err = readHeight(db); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to scan ledger %s", path)
	}
	logger.Infof("Opened generation ledger %s at height %d", path, l.nextSeq)
	return l, nil
}

func (l *GenerationLedger) Close() error {
	return l.db.Close()
}

// Height returns the number of generations recorded.
func (l *GenerationLedger) Height() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.nextSeq
}

// Append records g under the next sequence number and returns it with the sequence set.
func (l *GenerationLedger) Append(g Generation) (Generation, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	g.Sequence = l.nextSeq
	value, err := json.Marshal(g)
	if err != nil {
		return Generation{}, errors.Wrap(err, "failed to marshal generation")
	}
	batch := new(leveldb.Batch)
	batch.Put(makeGenerationKey(g.Sequence), value)
	batch.Put(heightKey, makeHeight(g.Sequence+1))
	if err := l.db.Write(batch, nil); err != nil {
		return Generation{}, errors.Wrapf(err, "failed to store generation %d", g.Sequence)
	}
	l.nextSeq++
	close(l.appended)
	l.appended = make(chan struct{})

	l.logger.Debugf("Recorded generation %d of %s: %s", g.Sequence, g.Instance, g.ContentHash)
	return g, nil
}

// Get returns the generation with the given sequence, or nil if there is none.
func (l *GenerationLedger) Get(seq uint64) (*Generation, error) {
	value, err := l.db.Get(makeGenerationKey(seq), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read generation %d", seq)
	}
	return unmarshal(value)
}

// Last returns the latest generation, or nil if the ledger is empty.
func (l *GenerationLedger) Last() (*Generation, error) {
	height := l.Height()
	if height == 0 {
		return nil, nil
	}
	return l.Get(height - 1)
}

// List returns up to limit generations starting at sequence from. A limit of zero or
// less lists everything.
func (l *GenerationLedger) List(from uint64, limit int) ([]Generation, error) {
	iter := l.db.NewIterator(&util.Range{
		Start: makeGenerationKey(from),
		Limit: []byte{generationPrefix + 1},
	}, nil)
	defer iter.Release()

	var out []Generation
	for iter.Next() {
		if limit > 0 && len(out) == limit {
			break
		}
		g, err := unmarshal(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, errors.Wrap(iter.Error(), "failed to iterate ledger")
}

// Prune deletes the generations below sequence before and returns how many were deleted.
// Sequence numbers are never reused.
func (l *GenerationLedger) Prune(before uint64) (int, error) {
	iter := l.db.NewIterator(&util.Range{
		Start: makeGenerationKey(0),
		Limit: makeGenerationKey(before),
	}, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return 0, errors.Wrap(err, "failed to iterate ledger")
	}
	if err := l.db.Write(batch, nil); err != nil {
		return 0, errors.Wrap(err, "failed to prune ledger")
	}
	return batch.Len(), nil
}

// Follow streams generations starting at sequence from, waiting for new ones, until ctx
// is done. The channel is closed when following stops.
func (l *GenerationLedger) Follow(ctx context.Context, from uint64) <-chan Generation {
	c := make(chan Generation)
	go func() {
		defer close(c)
		next := from
		for {
			l.lock.Lock()
			height, appended := l.nextSeq, l.appended
			l.lock.Unlock()

			for ; next < height; next++ {
				g, err := l.Get(next)
				if err != nil {
					l.logger.Warnf("Stopped following ledger: %v", err)
					return
				}
				if g == nil {
					continue
				}
				select {
				case c <- *g:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-appended:
			case <-ctx.Done():
				return
			}
		}
	}()
	return c
}

// readHeight returns the stored next sequence, falling back to the last generation key for
// ledgers written before the height was recorded.
func readHeight(db *leveldb.DB) (uint64, error) {
	value, err := db.Get(heightKey, nil)
	if err == nil {
		if len(value) != 8 {
			return 0, errors.Errorf("malformed ledger height of %d bytes", len(value))
		}
		return binary.BigEndian.Uint64(value), nil
	}
	if !errors.Is(err, leveldb.ErrNotFound) {
		return 0, err
	}

	iter := db.NewIterator(util.BytesPrefix([]byte{generationPrefix}), nil)
	defer iter.Release()
	var height uint64
	if iter.Last() {
		height = binary.BigEndian.Uint64(iter.Key()[1:]) + 1
	}
	return height, iter.Error()
}

func makeHeight(seq uint64) []byte {
	buff := make([]byte, 8)
	binary.BigEndian.PutUint64(buff, seq)
	return buff
}

func unmarshal(value []byte) (*Generation, error) {
	g := &Generation{}
	if err := json.Unmarshal(value, g); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal generation")
	}
	return g, nil
}

func makeGenerationKey(seq uint64) []byte {
	buff := make([]byte, 9)
	buff[0] = generationPrefix
	binary.BigEndian.PutUint64(buff[1:], seq)
	return buff
}

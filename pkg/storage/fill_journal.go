package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/veillabs/veilbook/pkg/book"
)

// FillJournal is a pebble-backed append-only record of fills. The matching
// engine owns no persistence of its own; the hosting process wires the
// journal in through the book's fill hook to keep a durable audit trail.
//
// Keys: f:<8-byte big-endian sequence>. Sequence order is append order,
// which matches the book's chronological fill order.
type FillJournal struct {
	mu  sync.Mutex
	db  *pebble.DB
	seq uint64
}

var (
	journalPrefix     = []byte("f:")
	journalUpperBound = []byte("f;") // exclusive bound for prefix scans
)

func fillKey(seq uint64) []byte {
	key := make([]byte, len(journalPrefix)+8)
	copy(key, journalPrefix)
	binary.BigEndian.PutUint64(key[len(journalPrefix):], seq)
	return key
}

// OpenFillJournal opens (or creates) a journal at path and resumes the
// sequence counter from the last persisted entry.
func OpenFillJournal(path string) (*FillJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open fill journal: %w", err)
	}

	j := &FillJournal{db: db}

	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: journalPrefix,
		UpperBound: journalUpperBound,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open fill journal: %w", err)
	}
	if iter.Last() && len(iter.Key()) == len(journalPrefix)+8 {
		j.seq = binary.BigEndian.Uint64(iter.Key()[len(journalPrefix):])
	}
	if err := iter.Close(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *FillJournal) Close() error { return j.db.Close() }

// Append persists one fill. Entries are never updated or deleted except by
// Truncate.
func (j *FillJournal) Append(f book.Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	val, err := encodeGob(f)
	if err != nil {
		return fmt.Errorf("encode fill: %w", err)
	}
	if err := j.db.Set(fillKey(j.seq+1), val, pebble.Sync); err != nil {
		return fmt.Errorf("append fill: %w", err)
	}
	j.seq++
	return nil
}

// All returns every journaled fill in append order.
func (j *FillJournal) All() ([]book.Fill, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: journalPrefix,
		UpperBound: journalUpperBound,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var fills []book.Fill
	for iter.First(); iter.Valid(); iter.Next() {
		var f book.Fill
		if err := decodeGob(iter.Value(), &f); err != nil {
			return nil, fmt.Errorf("decode fill: %w", err)
		}
		fills = append(fills, f)
	}
	return fills, iter.Error()
}

// Truncate removes every journaled fill and restarts the sequence. Used when
// the book itself is reset.
func (j *FillJournal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.db.DeleteRange(journalPrefix, journalUpperBound, pebble.Sync); err != nil {
		return fmt.Errorf("truncate fill journal: %w", err)
	}
	j.seq = 0
	return nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

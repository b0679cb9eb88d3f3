package pebblekeyspace

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"smoltable/lsm"
)

// Snapshot is the pebble-backed lsm.Snapshot implementation.
type Snapshot struct {
	partition *Partition
	snap      *pebble.Snapshot
}

// Range implements lsm.Snapshot.
func (s *Snapshot) Range(lower []byte) lsm.Iterator {
	p := s.partition
	_, upper := prefixBounds(p.prefix)

	lowerFull := p.fullKey(lower)

	iter, err := s.snap.NewIter(&pebble.IterOptions{
		LowerBound: lowerFull,
		UpperBound: upper,
	})
	return &Iterator{iter: iter, prefixLen: len(p.prefix), err: err, started: false}
}

// Prefix implements lsm.Snapshot.
func (s *Snapshot) Prefix(prefix []byte) lsm.Iterator {
	p := s.partition
	full := p.fullKey(prefix)
	lower, upper := prefixBounds(full)

	iter, err := s.snap.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	return &Iterator{iter: iter, prefixLen: len(p.prefix), err: err, started: false}
}

// Close implements lsm.Snapshot.
func (s *Snapshot) Close() error {
	return errors.Wrap(s.snap.Close(), "pebblekeyspace: close snapshot")
}

// Iterator is the pebble-backed lsm.Iterator implementation. It strips the
// partition's namespace prefix off every key it returns, so callers only
// ever see logical cell keys.
type Iterator struct {
	iter      *pebble.Iterator
	prefixLen int
	started   bool
	err       error
}

// Next implements lsm.Iterator.
func (it *Iterator) Next() (key, value []byte, ok bool, err error) {
	if it.err != nil {
		return nil, nil, false, it.err
	}
	if it.iter == nil {
		return nil, nil, false, nil
	}

	var valid bool
	if !it.started {
		it.started = true
		valid = it.iter.First()
	} else {
		valid = it.iter.Next()
	}

	if !valid {
		if err := it.iter.Error(); err != nil {
			return nil, nil, false, errors.Wrap(err, "pebblekeyspace: iterate")
		}
		return nil, nil, false, nil
	}

	k := it.iter.Key()[it.prefixLen:]
	v := it.iter.Value()

	keyCopy := append([]byte(nil), k...)
	valCopy := append([]byte(nil), v...)
	return keyCopy, valCopy, true, nil
}

// Close implements lsm.Iterator.
func (it *Iterator) Close() error {
	if it.iter == nil {
		return nil
	}
	return errors.Wrap(it.iter.Close(), "pebblekeyspace: close iterator")
}

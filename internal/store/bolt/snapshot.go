// Package bolt keeps a snapshot of the latest variable values in a bbolt
// file, so the state of a long-running system survives a restart and can be
// inspected without replaying the run log.
package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/roach88/varsys/internal/ir"
)

var (
	valuesBucket = []byte("values")
	metaBucket   = []byte("meta")
	tickKey      = []byte("tick")
)

// Snapshot is an engine.Observer that stores the last dispatched value of
// every variable. Writes are batched per tick: the values of a tick are
// committed in one transaction when the next tick starts or on Flush.
//
// A Snapshot is used from the ticking goroutine only.
type Snapshot struct {
	db      *bbolt.DB
	logger  *slog.Logger
	tick    int64
	pending map[string][]byte
	err     error
}

// Open opens or creates the snapshot file at path.
func Open(path string, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{valuesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	return &Snapshot{
		db:      db,
		logger:  logger,
		pending: make(map[string][]byte),
	}, nil
}

// TickStarted implements engine.Observer.
func (s *Snapshot) TickStarted(tick int64) {
	s.flush()
	s.tick = tick
}

// Evaluated implements engine.Observer.
func (s *Snapshot) Evaluated(tick int64, variable string, value any, changed bool) {
	data, err := ir.MarshalCanonical(value)
	if err != nil {
		data, err = ir.MarshalCanonicalStruct(value)
	}
	if err != nil {
		s.logger.Warn("snapshot value skipped", "variable", variable, "tick", tick, "error", err)
		return
	}
	s.pending[variable] = data
}

// Flush commits the buffered tick and returns the first write error.
func (s *Snapshot) Flush() error {
	s.flush()
	return s.err
}

func (s *Snapshot) flush() {
	if s.err != nil || (len(s.pending) == 0 && s.tick == 0) {
		return
	}
	pending := s.pending
	s.pending = make(map[string][]byte)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		values := tx.Bucket(valuesBucket)
		for name, data := range pending {
			if err := values.Put([]byte(name), data); err != nil {
				return err
			}
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(s.tick))
		return tx.Bucket(metaBucket).Put(tickKey, buf[:])
	})
	if err != nil {
		s.err = fmt.Errorf("snapshot tick %d: %w", s.tick, err)
		s.logger.Error("snapshot stopped", "tick", s.tick, "error", err)
	}
}

// Values returns the committed value of every variable.
func (s *Snapshot) Values() (map[string]any, error) {
	out := make(map[string]any)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(valuesBucket).ForEach(func(k, v []byte) error {
			var value any
			if err := json.Unmarshal(v, &value); err != nil {
				return fmt.Errorf("variable %s: %w", k, err)
			}
			out[string(k)] = value
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return out, nil
}

// Tick returns the last committed tick, or 0 for a fresh snapshot.
func (s *Snapshot) Tick() (int64, error) {
	var tick int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get(tickKey); len(v) == 8 {
			tick = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return tick, err
}

// Close flushes and closes the file.
func (s *Snapshot) Close() error {
	err := s.Flush()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// Package bolt journals alerts in a single-file bbolt database.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

var bucketAlerts = []byte("alerts")

// Store implements alert.Store. Alerts are keyed by alert id and stored as
// JSON; each Save overwrites the previous revision.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open alert journal: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAlerts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create alerts bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(_ context.Context, a *domain.Alert) error {
	if a.ID == "" {
		return errors.New("save alert: empty id")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAlerts).Put([]byte(a.ID), data)
	})
}

// LoadActive returns every journaled alert that is not RESOLVED.
func (s *Store) LoadActive(ctx context.Context) ([]*domain.Alert, error) {
	var out []*domain.Alert
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAlerts).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var a domain.Alert
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode alert %s: %w", k, err)
			}
			if a.Active() {
				out = append(out, &a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one journaled alert regardless of state.
func (s *Store) Get(_ context.Context, id string) (*domain.Alert, bool, error) {
	var a *domain.Alert
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketAlerts).Get([]byte(id))
		if v == nil {
			return nil
		}
		a = &domain.Alert{}
		return json.Unmarshal(v, a)
	})
	if err != nil {
		return nil, false, fmt.Errorf("read alert %s: %w", id, err)
	}
	return a, a != nil, nil
}

// PruneResolved deletes resolved alerts whose resolution predates before.
func (s *Store) PruneResolved(_ context.Context, before time.Time) (int, error) {
	var pruned int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAlerts)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var a domain.Alert
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode alert %s: %w", k, err)
			}
			if !a.Active() && a.ResolvedAt.Before(before) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Keys are deleted after iteration; mutating during ForEach is unsafe.
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		pruned = len(stale)
		return nil
	})
	return pruned, err
}

// Package rawcache keeps the last raw provider payload per series so that
// provider analysis can run offline and without hammering the provider.
package rawcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("no cached payload")

var seriesInfoBucket = []byte("series_info")

// Entry is one cached get_series_info body.
type Entry struct {
	AccountID int64           `json:"accountId"`
	SeriesID  string          `json:"seriesId"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Body      json.RawMessage `json:"body"`
}

// Store is a bbolt backed payload cache.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the cache file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open raw cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(seriesInfoBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create raw cache bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the cache file.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutSeriesInfo stores body as the latest payload for the series.
func (s *Store) PutSeriesInfo(accountID int64, seriesID string, body []byte) error {
	entry := Entry{
		AccountID: accountID,
		SeriesID:  seriesID,
		FetchedAt: time.Now().UTC(),
		Body:      json.RawMessage(body),
	}
	if !json.Valid(body) {
		// Keep unparseable payloads for inspection as a JSON string.
		quoted, _ := json.Marshal(string(body))
		entry.Body = quoted
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(seriesInfoBucket).Put(key(accountID, seriesID), data)
	})
}

// GetSeriesInfo returns the cached payload for the series.
func (s *Store) GetSeriesInfo(accountID int64, seriesID string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(seriesInfoBucket).Get(key(accountID, seriesID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListSeriesIDs returns the cached series ids of an account in key order.
func (s *Store) ListSeriesIDs(accountID int64) ([]string, error) {
	prefix := accountPrefix(accountID)
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(seriesInfoBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, string(k[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

// DeleteAccount drops every cached payload of an account.
func (s *Store) DeleteAccount(accountID int64) (int, error) {
	prefix := accountPrefix(accountID)
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(seriesInfoBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// Count returns the number of cached payloads.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(seriesInfoBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func accountPrefix(accountID int64) []byte {
	return []byte(strconv.FormatInt(accountID, 10) + "/")
}

func key(accountID int64, seriesID string) []byte {
	return append(accountPrefix(accountID), seriesID...)
}

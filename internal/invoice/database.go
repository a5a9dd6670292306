package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/invoice-extract/internal/scanning"
)

const (
	extractionsBucket = "extractions"
	digestsBucket     = "digests"
)

// ErrNotFound is returned when no extraction matches
var ErrNotFound = errors.New("extraction not found")

// DB defines the interface for extraction history
type DB interface {
	// SaveExtraction saves an extraction and indexes it by provider and digest
	SaveExtraction(extraction *Extraction) error

	// GetExtraction retrieves an extraction by ID
	GetExtraction(id string) (*Extraction, error)

	// FindExtraction retrieves the latest extraction of a document by a provider
	FindExtraction(provider, digest string) (*Extraction, error)

	// ListExtractions returns all extractions, newest first
	ListExtractions() ([]*Extraction, error)

	// DeleteExtraction removes an extraction
	DeleteExtraction(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{extractionsBucket, digestsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func digestKey(provider, digest string) []byte {
	return []byte(provider + ":" + digest)
}

// SaveExtraction saves an extraction to the database
func (b *BoltDB) SaveExtraction(extraction *Extraction) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(extraction)
		if err != nil {
			return fmt.Errorf("marshaling extraction: %w", err)
		}
		if err := tx.Bucket([]byte(extractionsBucket)).Put([]byte(extraction.ID), data); err != nil {
			return err
		}
		// Exhausted polls are kept in history but never offered for reuse
		if extraction.Digest == "" || extraction.State == scanning.PollExhausted {
			return nil
		}
		return tx.Bucket([]byte(digestsBucket)).Put(digestKey(extraction.Provider, extraction.Digest), []byte(extraction.ID))
	})
}

// GetExtraction retrieves an extraction by ID
func (b *BoltDB) GetExtraction(id string) (*Extraction, error) {
	var extraction *Extraction
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		extraction, err = getExtraction(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return extraction, nil
}

// FindExtraction looks an extraction up by provider and document digest
func (b *BoltDB) FindExtraction(provider, digest string) (*Extraction, error) {
	var extraction *Extraction
	err := b.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(digestsBucket)).Get(digestKey(provider, digest))
		if id == nil {
			return ErrNotFound
		}
		var err error
		extraction, err = getExtraction(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return extraction, nil
}

func getExtraction(tx *bbolt.Tx, id string) (*Extraction, error) {
	data := tx.Bucket([]byte(extractionsBucket)).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var extraction Extraction
	if err := json.Unmarshal(data, &extraction); err != nil {
		return nil, fmt.Errorf("unmarshaling extraction: %w", err)
	}
	return &extraction, nil
}

// ListExtractions returns all extractions, newest first
func (b *BoltDB) ListExtractions() ([]*Extraction, error) {
	extractions := make([]*Extraction, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(extractionsBucket)).ForEach(func(k, v []byte) error {
			var extraction Extraction
			if err := json.Unmarshal(v, &extraction); err != nil {
				return fmt.Errorf("unmarshaling extraction: %w", err)
			}
			extractions = append(extractions, &extraction)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(extractions, func(i, j int) bool {
		return extractions[i].CreatedAt.After(extractions[j].CreatedAt)
	})
	return extractions, nil
}

// DeleteExtraction removes an extraction and its digest index entry
func (b *BoltDB) DeleteExtraction(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		extraction, err := getExtraction(tx, id)
		if err != nil {
			return err
		}
		digests := tx.Bucket([]byte(digestsBucket))
		key := digestKey(extraction.Provider, extraction.Digest)
		if string(digests.Get(key)) == id {
			if err := digests.Delete(key); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(extractionsBucket)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

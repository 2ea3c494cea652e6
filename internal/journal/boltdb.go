package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const bucketName = "imports"

// BoltDBJournal implements Journal on a local BoltDB file
type BoltDBJournal struct {
	db *bbolt.DB
}

// NewBoltDBJournal opens (or creates) the journal at dbPath
func NewBoltDBJournal(dbPath string) (*BoltDBJournal, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Debug().Str("db_path", dbPath).Msg("Import journal opened")

	return &BoltDBJournal{db: db}, nil
}

func (j *BoltDBJournal) Get(ctx context.Context, path string) (*Entry, error) {
	var entry *Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(bucketName)).Get([]byte(path))
		if val == nil {
			return nil
		}
		entry = &Entry{}
		return json.Unmarshal(val, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry for %s: %w", path, err)
	}

	return entry, nil
}

func (j *BoltDBJournal) Put(ctx context.Context, entry Entry) error {
	if entry.Path == "" {
		return fmt.Errorf("journal entry without path")
	}

	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	err = j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.Path), val)
	})
	if err != nil {
		return fmt.Errorf("failed to put journal entry for %s: %w", entry.Path, err)
	}

	log.Debug().
		Str("file", entry.Path).
		Uint64("points", entry.Points).
		Msg("Import recorded in journal")

	return nil
}

func (j *BoltDBJournal) Delete(ctx context.Context, path string) error {
	err := j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("failed to delete journal entry for %s: %w", path, err)
	}
	return nil
}

func (j *BoltDBJournal) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				log.Warn().Err(err).Str("key", string(k)).Msg("Skipping corrupt journal entry")
				return nil
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}

	return entries, nil
}

func (j *BoltDBJournal) Close() error {
	return j.db.Close()
}

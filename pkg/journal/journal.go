package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketRemediations = []byte("remediations")

type Action string

const (
	ActionRemoved  Action = "removed"
	ActionFailed   Action = "failed"
	ActionDetected Action = "detected" // dry run, nothing touched
)

// Record is one remediation outcome. Snapshots themselves are never stored.
type Record struct {
	ID            uuid.UUID `json:"id"`
	RunID         uuid.UUID `json:"run_id"`
	Root          string    `json:"root"`
	Path          string    `json:"path"`
	IsDir         bool      `json:"is_dir"`
	Action        Action    `json:"action"`
	Error         string    `json:"error,omitempty"`
	Digest        string    `json:"digest,omitempty"`
	QuarantineKey string    `json:"quarantine_key,omitempty"`
	At            time.Time `json:"at"`
}

func (r *Record) String() string {
	bin, _ := json.Marshal(r)
	return string(bin)
}

type Journal struct {
	db *bolt.DB
}

func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRemediations)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Append stores rec, filling in ID and At when they are zero.
func (j *Journal) Append(rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRemediations)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), val)
	})
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (j *Journal) List(limit int) ([]Record, error) {
	out := make([]Record, 0)
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRemediations)
		if b == nil {
			return errors.New("journal bucket missing")
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

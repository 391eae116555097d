package remediate

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"github.com/dashjay/dirguard/pkg/backend"
	"github.com/dashjay/dirguard/pkg/detect"
	"github.com/dashjay/dirguard/pkg/journal"
)

// Recorder keeps an audit trail of remediation outcomes.
type Recorder interface {
	Append(rec journal.Record) error
}

type Options struct {
	RunID uuid.UUID
	// DryRun logs and records findings without touching the filesystem.
	DryRun bool
	// Quarantine, when set, receives a copy of each regular file before removal.
	Quarantine backend.Interface
	Journal    Recorder
	Remover    Remover
}

// Remediator is driven from a single goroutine and is not safe for concurrent use.
type Remediator struct {
	runID      uuid.UUID
	dryRun     bool
	quarantine backend.Interface
	journal    Recorder
	remover    Remover

	// last journaled action per path that is still on disk; uploaded digest per path.
	last     map[string]journal.Action
	uploaded map[string]string
}

func New(opts Options) *Remediator {
	r := &Remediator{
		runID:      opts.RunID,
		dryRun:     opts.DryRun,
		quarantine: opts.Quarantine,
		journal:    opts.Journal,
		remover:    opts.Remover,
		last:       make(map[string]journal.Action),
		uploaded:   make(map[string]string),
	}
	if r.runID == uuid.Nil {
		r.runID = uuid.New()
	}
	if r.remover == nil {
		r.remover = osRemover{}
	}
	return r
}

// Remediate removes the entry named by f. Directories are only removed when
// empty. The filesystem error is returned wrapped, so errors.Is keeps working.
func (r *Remediator) Remediate(ctx context.Context, f detect.Finding) error {
	log := logrus.WithField("path", f.Path).WithField("is_dir", f.IsDir)
	log.Warnln("unauthorized entry detected")

	rec := journal.Record{RunID: r.runID, Root: f.Root, Path: f.Path, IsDir: f.IsDir}
	if r.dryRun {
		rec.Action = journal.ActionDetected
		r.record(rec)
		log.Infoln("dry run, unauthorized entry left in place")
		return nil
	}

	if !f.IsDir && r.quarantine != nil {
		key, digest, err := r.quarantineFile(ctx, f.Path)
		if err != nil {
			log.WithError(err).Warnln("quarantine failed, removing anyway")
		} else {
			rec.Digest = digest
			rec.QuarantineKey = r.quarantine.Location(key)
			log.WithField("location", rec.QuarantineKey).Infoln("unauthorized entry quarantined")
		}
	}

	var err error
	if f.IsDir {
		err = r.remover.RemoveDir(f.Path)
	} else {
		err = r.remover.RemoveFile(f.Path)
	}
	if err != nil {
		rec.Action = journal.ActionFailed
		rec.Error = err.Error()
		r.record(rec)
		return fmt.Errorf("remove unauthorized entry %s: %w", f.Path, err)
	}

	rec.Action = journal.ActionRemoved
	r.record(rec)
	delete(r.last, f.Path)
	delete(r.uploaded, f.Path)
	log.Infoln("unauthorized entry has been removed")
	return nil
}

// record appends rec unless the previous record for the same path carried the
// same action, so an entry re-flagged every cycle is journaled once until it
// is removed or its outcome changes.
func (r *Remediator) record(rec journal.Record) {
	if r.journal == nil {
		return
	}
	if rec.Action != journal.ActionRemoved {
		if r.last[rec.Path] == rec.Action {
			return
		}
		r.last[rec.Path] = rec.Action
	}
	if err := r.journal.Append(rec); err != nil {
		logrus.WithField("path", rec.Path).WithError(err).Errorln("append journal record")
	}
}

// quarantineFile uploads a regular file and returns its key and blake2b-256 digest.
// Anything that is not a regular file, symlinks included, is skipped with an
// error before it is opened. A file already uploaded with the same digest in
// this run is not uploaded again.
func (r *Remediator) quarantineFile(ctx context.Context, p string) (key string, digest string, err error) {
	info, err := os.Lstat(p)
	if err != nil {
		return "", "", err
	}
	if !info.Mode().IsRegular() {
		return "", "", fmt.Errorf("not a regular file: %s", info.Mode())
	}
	f, err := openNoFollow(p)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	info, err = f.Stat()
	if err != nil {
		return "", "", err
	}
	if !info.Mode().IsRegular() {
		return "", "", fmt.Errorf("not a regular file: %s", info.Mode())
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", "", err
	}
	digest = hex.EncodeToString(h.Sum(nil))
	key = QuarantineKey(r.runID, p)
	if r.uploaded[p] == digest {
		return key, digest, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}

	if err := r.quarantine.Put(ctx, key, f, info.Size()); err != nil {
		return "", "", err
	}
	r.uploaded[p] = digest
	return key, digest, nil
}

// QuarantineKey places p under the run, keyed by a hash of its full path so
// equal base names from different directories do not collide.
func QuarantineKey(runID uuid.UUID, p string) string {
	sum := blake2b.Sum256([]byte(p))
	return path.Join(runID.String(), hex.EncodeToString(sum[:8]), filepath.Base(p))
}

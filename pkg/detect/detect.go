package detect

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/dashjay/dirguard/pkg/types"
)

const defaultBatch = 256

// Finding is a live child of a watched directory that the snapshot does not know.
type Finding struct {
	Root  string
	Path  string
	IsDir bool
}

// DirReader is the part of *os.File used to list a directory.
type DirReader interface {
	ReadDir(n int) ([]fs.DirEntry, error)
	Close() error
}

type Detector struct {
	// Batch is how many directory entries are read per call, <= 0 means default.
	Batch int
	// Open replaces os.Open for listing directories when set.
	Open func(path string) (DirReader, error)
}

func New() *Detector {
	return &Detector{Batch: defaultBatch}
}

// Detect compares the immediate children of entry against the live directory.
// Grandchildren are ignored. A *types.File yields nothing.
func (d *Detector) Detect(entry types.Entry) ([]Finding, error) {
	dir, ok := entry.(*types.Directory)
	if !ok {
		return nil, nil
	}
	current, err := d.List(dir.Path())
	if err != nil {
		return nil, err
	}
	added := dir.ChildPaths().Subtract(current)
	if len(added) == 0 {
		return nil, nil
	}

	findings := make([]Finding, 0, len(added))
	for _, p := range added {
		info, err := os.Lstat(p)
		if err != nil {
			return nil, fmt.Errorf("stat new entry %s: %w", p, err)
		}
		findings = append(findings, Finding{Root: dir.Path(), Path: p, IsDir: info.IsDir()})
	}
	return findings, nil
}

// List returns the sorted paths of the live children of path. Failing to open
// path is an error; a failure part way through is logged and the children read
// so far are kept.
func (d *Detector) List(path string) (types.PathList, error) {
	f, err := d.open(path)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", path, err)
	}
	defer f.Close()

	batch := d.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	list := make(types.PathList, 0)
	for {
		des, err := f.ReadDir(batch)
		for _, de := range des {
			list = append(list, filepath.Join(path, de.Name()))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logrus.WithField("path", path).WithError(err).Errorln("failed to check entries in directory")
			break
		}
	}
	list.Sort()
	return list, nil
}

func (d *Detector) open(path string) (DirReader, error) {
	if d.Open != nil {
		return d.Open(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

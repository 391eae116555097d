package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/dashjay/dirguard/pkg/types"
)

// Snapshotter captures the baseline tree of a root once, before monitoring.
type Snapshotter struct {
	pb *progressbar.ProgressBar
}

// New returns a Snapshotter that ticks pb once per captured entry. pb may be nil.
func New(pb *progressbar.ProgressBar) *Snapshotter {
	return &Snapshotter{pb: pb}
}

// Scan is a Snapshotter without progress output.
func Scan(path string) (*types.Directory, error) {
	return New(nil).Scan(path)
}

// Scan walks path recursively and returns the frozen tree beneath it.
// Symbolic links are recorded as files and never followed.
func (s *Snapshotter) Scan(path string) (*types.Directory, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", path, err)
	}
	children := make([]types.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		childPath := filepath.Join(path, de.Name())
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("read metadata of %s: %w", childPath, err)
		}
		s.tick()
		if info.IsDir() {
			sub, err := s.Scan(childPath)
			if err != nil {
				return nil, err
			}
			children = append(children, sub)
			continue
		}
		logrus.WithField("path", childPath).WithField("mode", info.Mode().String()).Traceln("captured file")
		children = append(children, types.NewFile(childPath))
	}
	return types.NewDirectory(path, children), nil
}

func (s *Snapshotter) tick() {
	if s.pb != nil {
		_ = s.pb.Add(1)
	}
}

type Stats struct {
	Directories int
	Files       int
}

// Count returns how many directories (root included) and files dir holds.
func Count(dir *types.Directory) Stats {
	st := Stats{Directories: 1}
	for _, c := range dir.Children() {
		switch e := c.(type) {
		case *types.Directory:
			sub := Count(e)
			st.Directories += sub.Directories
			st.Files += sub.Files
		case *types.File:
			st.Files++
		}
	}
	return st
}

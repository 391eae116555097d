package remediate

import (
	"io/fs"
	"syscall"
)

// Remover deletes single filesystem entries. It never removes recursively.
type Remover interface {
	RemoveDir(path string) error
	RemoveFile(path string) error
}

type osRemover struct{}

// RemoveDir fails unless path is an empty directory.
func (osRemover) RemoveDir(path string) error {
	if err := syscall.Rmdir(path); err != nil {
		return &fs.PathError{Op: "rmdir", Path: path, Err: err}
	}
	return nil
}

// RemoveFile unlinks path; a symlink is removed, not its target.
func (osRemover) RemoveFile(path string) error {
	if err := syscall.Unlink(path); err != nil {
		return &fs.PathError{Op: "unlink", Path: path, Err: err}
	}
	return nil
}

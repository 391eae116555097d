package remediate_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashjay/dirguard/pkg/detect"
	"github.com/dashjay/dirguard/pkg/journal"
	"github.com/dashjay/dirguard/pkg/remediate"
)

type memJournal struct {
	recs []journal.Record
}

func (m *memJournal) Append(rec journal.Record) error {
	m.recs = append(m.recs, rec)
	return nil
}

type memBackend struct {
	objects map[string]string
	puts    int
	err     error
}

func (m *memBackend) Put(_ context.Context, key string, body io.ReadSeeker, _ int64) error {
	m.puts++
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string]string{}
	}
	m.objects[key] = string(b)
	return nil
}

func (m *memBackend) Location(key string) string {
	return "mem://" + key
}

type spyRemover struct {
	dirs, files []string
}

func (s *spyRemover) RemoveDir(path string) error {
	s.dirs = append(s.dirs, path)
	return nil
}

func (s *spyRemover) RemoveFile(path string) error {
	s.files = append(s.files, path)
	return nil
}

func TestRemoveFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "evil.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	j := &memJournal{}

	r := remediate.New(remediate.Options{Journal: j})
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Root: root, Path: p}))

	_, err := os.Lstat(p)
	assert.ErrorIs(t, err, os.ErrNotExist)
	require.Len(t, j.recs, 1)
	assert.Equal(t, journal.ActionRemoved, j.recs[0].Action)
	assert.Equal(t, root, j.recs[0].Root)
}

func TestRemoveEmptyDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil_dir")
	require.NoError(t, os.Mkdir(p, 0o755))

	r := remediate.New(remediate.Options{})
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: p, IsDir: true}))
	_, err := os.Lstat(p)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirUsesDirectoryRemoval(t *testing.T) {
	spy := &spyRemover{}
	r := remediate.New(remediate.Options{Remover: spy})
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: "/w/d", IsDir: true}))
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: "/w/f"}))
	assert.Equal(t, []string{"/w/d"}, spy.dirs)
	assert.Equal(t, []string{"/w/f"}, spy.files)
}

func TestNonEmptyDirFails(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil_dir")
	require.NoError(t, os.Mkdir(p, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p, "evil_child"), nil, 0o644))
	j := &memJournal{}

	r := remediate.New(remediate.Options{Journal: j})
	err := r.Remediate(context.Background(), detect.Finding{Path: p, IsDir: true})
	require.Error(t, err)
	var pe *os.PathError
	assert.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST))

	_, statErr := os.Stat(filepath.Join(p, "evil_child"))
	assert.NoError(t, statErr)
	require.Len(t, j.recs, 1)
	assert.Equal(t, journal.ActionFailed, j.recs[0].Action)
	assert.NotEmpty(t, j.recs[0].Error)
}

func TestVanishedEntry(t *testing.T) {
	p := filepath.Join(t.TempDir(), "gone")
	r := remediate.New(remediate.Options{})
	err := r.Remediate(context.Background(), detect.Finding{Path: p})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveSymlinkKeepsTarget(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(target, link))

	r := remediate.New(remediate.Options{})
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: link}))
	_, err := os.Lstat(link)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(target)
	assert.NoError(t, err)
}

func TestDryRun(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil.txt")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	j := &memJournal{}

	r := remediate.New(remediate.Options{DryRun: true, Journal: j})
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: p}))
	_, err := os.Stat(p)
	assert.NoError(t, err)
	require.Len(t, j.recs, 1)
	assert.Equal(t, journal.ActionDetected, j.recs[0].Action)
}

func TestQuarantine(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil.txt")
	require.NoError(t, os.WriteFile(p, []byte("payload"), 0o644))
	run := uuid.New()
	mem := &memBackend{}
	j := &memJournal{}

	r := remediate.New(remediate.Options{RunID: run, Quarantine: mem, Journal: j})
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: p}))

	key := remediate.QuarantineKey(run, p)
	assert.Equal(t, "payload", mem.objects[key])
	require.Len(t, j.recs, 1)
	assert.Equal(t, run, j.recs[0].RunID)
	assert.Equal(t, "mem://"+key, j.recs[0].QuarantineKey)
	assert.Len(t, j.recs[0].Digest, 64)
	_, err := os.Stat(p)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestQuarantineFailureStillRemoves(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil.txt")
	require.NoError(t, os.WriteFile(p, []byte("payload"), 0o644))
	j := &memJournal{}

	r := remediate.New(remediate.Options{Quarantine: &memBackend{err: errors.New("offline")}, Journal: j})
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: p}))
	_, err := os.Stat(p)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, j.recs[0].QuarantineKey)
}

func TestQuarantineKey(t *testing.T) {
	run := uuid.New()
	a := remediate.QuarantineKey(run, "/w1/evil.txt")
	b := remediate.QuarantineKey(run, "/w2/evil.txt")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "evil.txt", filepath.Base(a))
	assert.Equal(t, a, remediate.QuarantineKey(run, "/w1/evil.txt"))
}

type stuckRemover struct{}

func (stuckRemover) RemoveDir(path string) error {
	return &os.PathError{Op: "rmdir", Path: path, Err: syscall.ENOTEMPTY}
}

func (stuckRemover) RemoveFile(path string) error {
	return &os.PathError{Op: "unlink", Path: path, Err: syscall.EPERM}
}

func TestSymlinkNeverQuarantined(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(outside, []byte("TARGET-CONTENT"), 0o600))
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(outside, link))
	mem := &memBackend{}
	j := &memJournal{}

	r := remediate.New(remediate.Options{Quarantine: mem, Journal: j})
	require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: link}))

	assert.Equal(t, 0, mem.puts)
	assert.Empty(t, mem.objects)
	_, err := os.Lstat(link)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(outside)
	assert.NoError(t, err)
	require.Len(t, j.recs, 1)
	assert.Empty(t, j.recs[0].Digest)
	assert.Empty(t, j.recs[0].QuarantineKey)
}

func TestRepeatedFailureJournaledOnce(t *testing.T) {
	j := &memJournal{}
	r := remediate.New(remediate.Options{Journal: j, Remover: stuckRemover{}})
	f := detect.Finding{Root: "/w", Path: "/w/evil_dir", IsDir: true}

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, r.Remediate(context.Background(), f), syscall.ENOTEMPTY)
	}
	require.Len(t, j.recs, 1)
	assert.Equal(t, journal.ActionFailed, j.recs[0].Action)
}

func TestFailureThenRemovalJournaled(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil_dir")
	require.NoError(t, os.Mkdir(p, 0o755))
	child := filepath.Join(p, "evil_child")
	require.NoError(t, os.WriteFile(child, nil, 0o644))
	j := &memJournal{}
	r := remediate.New(remediate.Options{Journal: j})
	f := detect.Finding{Path: p, IsDir: true}

	assert.Error(t, r.Remediate(context.Background(), f))
	assert.Error(t, r.Remediate(context.Background(), f))
	require.NoError(t, os.Remove(child))
	require.NoError(t, r.Remediate(context.Background(), f))

	// recreated after removal is a new event
	require.NoError(t, os.Mkdir(p, 0o755))
	require.NoError(t, r.Remediate(context.Background(), f))

	actions := make([]journal.Action, 0, len(j.recs))
	for _, rec := range j.recs {
		actions = append(actions, rec.Action)
	}
	assert.Equal(t, []journal.Action{journal.ActionFailed, journal.ActionRemoved, journal.ActionRemoved}, actions)
}

func TestDryRunJournaledOnce(t *testing.T) {
	j := &memJournal{}
	r := remediate.New(remediate.Options{DryRun: true, Journal: j})
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Remediate(context.Background(), detect.Finding{Path: "/w/evil.txt"}))
	}
	assert.Len(t, j.recs, 1)
}

func TestQuarantineUploadsOncePerContent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil.txt")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o644))
	run := uuid.New()
	mem := &memBackend{}
	r := remediate.New(remediate.Options{RunID: run, Quarantine: mem, Remover: stuckRemover{}})
	f := detect.Finding{Path: p}

	for i := 0; i < 3; i++ {
		assert.Error(t, r.Remediate(context.Background(), f))
	}
	assert.Equal(t, 1, mem.puts)

	require.NoError(t, os.WriteFile(p, []byte("v2"), 0o644))
	assert.Error(t, r.Remediate(context.Background(), f))
	assert.Equal(t, 2, mem.puts)
	assert.Equal(t, "v2", mem.objects[remediate.QuarantineKey(run, p)])
}

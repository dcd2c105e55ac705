package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiranshivaraju/geoharvest/internal/appeears"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedBundle(gw *fakeGateway) {
	gw.withTask("t1", "done")
	gw.responses["GET bundle/t1"] = `{"files":[
		{"file_id":"f1","file_name":"a.csv"},
		{"file_id":"f2","file_name":"b.csv"},
		{"file_id":"f3","file_name":"c.csv"}
	]}`
}

type fakeMirror struct {
	puts []string
	err  error
}

func (m *fakeMirror) Put(_ context.Context, jobID, fileName, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.puts = append(m.puts, fileName)
	return "s3://bucket/bundles/task_" + jobID + "/" + fileName, nil
}

func TestDownload_PartialFailure(t *testing.T) {
	gw := newFakeGateway()
	completedBundle(gw)
	gw.streams["STREAM bundle/t1/f1"] = "alpha"
	gw.errs["STREAM bundle/t1/f2"] = &appeears.RemoteCallError{Method: "GET", Path: "bundle/t1/f2", StatusCode: 500}
	gw.streams["STREAM bundle/t1/f3"] = "gamma!"

	root := t.TempDir()
	res, err := NewDownloader(gw, newTestTracker(gw), "/unused").Download(context.Background(), "t1", root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "task_t1"), res.Folder)
	assert.Equal(t, 2, res.FileCount)
	assert.Equal(t, int64(11), res.TotalSize)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "a.csv", res.Files[0].FileName)
	assert.Equal(t, "c.csv", res.Files[1].FileName)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "f2", res.Failed[0].FileID)

	b, err := os.ReadFile(filepath.Join(root, "task_t1", "c.csv"))
	require.NoError(t, err)
	assert.Equal(t, "gamma!", string(b))

	_, err = os.Stat(filepath.Join(root, "task_t1", "b.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "task_t1", "b.csv.part"))
	assert.True(t, os.IsNotExist(err), "partial file is removed")
}

func TestDownload_AllFail(t *testing.T) {
	gw := newFakeGateway()
	completedBundle(gw)

	res, err := NewDownloader(gw, newTestTracker(gw), "").Download(context.Background(), "t1", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBundleDownload))
	require.NotNil(t, res)
	assert.Len(t, res.Failed, 3)
	assert.Equal(t, 3, gw.count("STREAM "), "every file is attempted")
}

func TestDownload_NotReadyTouchesNothing(t *testing.T) {
	gw := newFakeGateway().withTask("t1", "running")
	root := t.TempDir()

	_, err := NewDownloader(gw, newTestTracker(gw), "").Download(context.Background(), "t1", root)
	assert.True(t, errors.Is(err, ErrJobNotReady))
	assert.Zero(t, gw.count("GET bundle/"))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_UsesDefaultRoot(t *testing.T) {
	gw := newFakeGateway()
	completedBundle(gw)
	gw.streams["STREAM bundle/t1/f1"] = "x"

	root := t.TempDir()
	res, err := NewDownloader(gw, newTestTracker(gw), root).Download(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "task_t1"), res.Folder)
}

func TestDownload_FileRootUsesItsDirectory(t *testing.T) {
	gw := newFakeGateway()
	completedBundle(gw)
	gw.streams["STREAM bundle/t1/f1"] = "x"

	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0o644))

	res, err := NewDownloader(gw, newTestTracker(gw), "").Download(context.Background(), "t1", file)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "task_t1"), res.Folder)
}

func TestDownload_SanitizesAndDeduplicatesNames(t *testing.T) {
	gw := newFakeGateway().withTask("t1", "done")
	gw.responses["GET bundle/t1"] = `[
		{"file_id":"f1","file_name":"../../etc/passwd"},
		{"file_id":"f2","file_name":"dir/passwd"},
		{"file_id":"f3","file_name":".."}
	]`
	gw.streams["STREAM bundle/t1/f1"] = "1"
	gw.streams["STREAM bundle/t1/f2"] = "2"
	gw.streams["STREAM bundle/t1/f3"] = "3"

	root := t.TempDir()
	res, err := NewDownloader(gw, newTestTracker(gw), "").Download(context.Background(), "t1", root)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)

	assert.Equal(t, "passwd", res.Files[0].FileName)
	assert.Equal(t, "f2_passwd", res.Files[1].FileName)
	assert.Equal(t, "file_f3", res.Files[2].FileName)
	for _, f := range res.Files {
		assert.Equal(t, res.Folder, filepath.Dir(f.FilePath))
	}
}

func TestDownload_DuplicateNameWithTraversingFileIDStaysInFolder(t *testing.T) {
	gw := newFakeGateway().withTask("t1", "done")
	gw.responses["GET bundle/t1"] = `[
		{"file_id":"f1","file_name":"a.csv"},
		{"file_id":"../../pwn","file_name":"a.csv"}
	]`
	gw.streams["STREAM bundle/t1/f1"] = "1"
	gw.streams["STREAM bundle/t1/..%2F..%2Fpwn"] = "2"

	root := filepath.Join(t.TempDir(), "root")
	res, err := NewDownloader(gw, newTestTracker(gw), "").Download(context.Background(), "t1", root)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	assert.Equal(t, "pwn_a.csv", res.Files[1].FileName)
	for _, f := range res.Files {
		assert.Equal(t, filepath.Join(root, "task_t1"), filepath.Dir(f.FilePath))
	}
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "pwn_a.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownload_MirrorsFilesAndToleratesMirrorErrors(t *testing.T) {
	gw := newFakeGateway()
	completedBundle(gw)
	gw.streams["STREAM bundle/t1/f1"] = "x"

	m := &fakeMirror{}
	res, err := NewDownloader(gw, newTestTracker(gw), "", WithMirror(m)).Download(context.Background(), "t1", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv"}, m.puts)
	assert.Equal(t, "s3://bucket/bundles/task_t1/a.csv", res.Files[0].MirrorURI)

	failing := &fakeMirror{err: errors.New("access denied")}
	res, err = NewDownloader(gw, newTestTracker(gw), "", WithMirror(failing)).Download(context.Background(), "t1", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, res.FileCount)
	require.Len(t, res.MirrorErrors, 1)
	assert.Contains(t, res.MirrorErrors[0], "access denied")
}

func TestLocalName(t *testing.T) {
	used := map[string]bool{}
	name, err := localName(bundleFileFor("1", "x.tif"), used)
	require.NoError(t, err)
	assert.Equal(t, "x.tif", name)

	name, err = localName(bundleFileFor("2", "x.tif"), used)
	require.NoError(t, err)
	assert.Equal(t, "2_x.tif", name)

	_, err = localName(bundleFileFor("2", "x.tif"), used)
	assert.Error(t, err)

	name, err = localName(bundleFileFor("../../up", "x.tif"), used)
	require.NoError(t, err)
	assert.Equal(t, "up_x.tif", name)

	_, err = localName(bundleFileFor("..", ".."), map[string]bool{})
	assert.Error(t, err)
}

func bundleFileFor(id, name string) models.BundleFile {
	return models.BundleFile{FileID: id, FileName: name}
}

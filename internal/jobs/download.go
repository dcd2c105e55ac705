package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// Mirror copies a downloaded bundle file to secondary storage and returns its URI.
type Mirror interface {
	Put(ctx context.Context, jobID, fileName, path string) (string, error)
}

// Downloader writes every file of a completed job's bundle under a local folder.
type Downloader struct {
	gw          Gateway
	status      StatusChecker
	resolver    *Resolver
	defaultRoot string
	mirror      Mirror
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithMirror uploads each downloaded file through m.
func WithMirror(m Mirror) DownloaderOption {
	return func(d *Downloader) { d.mirror = m }
}

// NewDownloader creates a Downloader writing under defaultRoot when the
// caller supplies no output root.
func NewDownloader(gw Gateway, status StatusChecker, defaultRoot string, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		gw:          gw,
		status:      status,
		resolver:    NewResolver(gw, status),
		defaultRoot: defaultRoot,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches all files of jobID's bundle into <outputRoot>/task_<jobID>.
// A failed file is recorded in the result and the loop moves on; the call
// fails only if no file was written.
func (d *Downloader) Download(ctx context.Context, jobID, outputRoot string) (*models.DownloadResult, error) {
	if err := requireCompleted(ctx, d.status, jobID); err != nil {
		return nil, err
	}

	files, err := d.resolver.list(ctx, jobID)
	if err != nil {
		return nil, err
	}

	folder := filepath.Join(d.resolveRoot(outputRoot), "task_"+jobID)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", folder, err)
	}

	log := slog.With("job_id", jobID, "folder", folder)
	log.Info("downloading bundle", "files", len(files))

	result := &models.DownloadResult{
		JobID:  jobID,
		Folder: folder,
		Files:  []models.DownloadedFile{},
	}
	used := make(map[string]bool, len(files))

	for _, f := range files {
		name, err := localName(f, used)
		if err != nil {
			d.fail(result, f, err)
			continue
		}

		path := filepath.Join(folder, name)
		size, err := d.fetch(ctx, jobID, f.FileID, path)
		if err != nil {
			log.Error("bundle file download failed", "file_id", f.FileID, "file_name", name, "error", err)
			d.fail(result, f, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		df := models.DownloadedFile{FileName: name, FilePath: path, FileID: f.FileID, Size: size}
		if d.mirror != nil {
			uri, err := d.mirror.Put(ctx, jobID, name, path)
			if err != nil {
				log.Warn("bundle mirror upload failed", "file_id", f.FileID, "error", err)
				result.MirrorErrors = append(result.MirrorErrors, fmt.Sprintf("%s: %v", name, err))
			} else {
				df.MirrorURI = uri
			}
		}

		result.Files = append(result.Files, df)
		result.TotalSize += size
		telemetry.BundleFilesDownloaded.Inc()
		telemetry.BundleBytes.Add(float64(size))
	}
	result.FileCount = len(result.Files)

	if result.FileCount == 0 {
		return result, fmt.Errorf("%w for job %s (%d attempted)", ErrBundleDownload, jobID, len(files))
	}

	log.Info("bundle downloaded", "files", result.FileCount, "failed", len(result.Failed), "total_size", result.TotalSize)
	return result, nil
}

// resolveRoot picks the directory task folders are created under. A path
// naming an existing regular file is replaced by its parent directory.
func (d *Downloader) resolveRoot(root string) string {
	if root == "" {
		root = d.defaultRoot
	}
	if root == "" {
		root = os.TempDir()
	}
	if fi, err := os.Stat(root); err == nil && !fi.IsDir() {
		return filepath.Dir(root)
	}
	return root
}

// fetch streams one file into a .part sibling and renames it into place.
func (d *Downloader) fetch(ctx context.Context, jobID, fileID, path string) (int64, error) {
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", tmp, err)
	}

	n, err := d.gw.Stream(ctx, bundleFilePath(jobID, fileID), out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return n, nil
}

func (d *Downloader) fail(result *models.DownloadResult, f models.BundleFile, err error) {
	telemetry.BundleFileFailures.Inc()
	result.Failed = append(result.Failed, models.FailedFile{
		FileID:   f.FileID,
		FileName: f.FileName,
		Error:    err.Error(),
	})
}

var errUnsafeName = errors.New("file name does not resolve to a single path element")

// localName reduces a remote file name to one path element and makes it
// unique within the task folder by prefixing the file id on collision.
func localName(f models.BundleFile, used map[string]bool) (string, error) {
	name := baseName(f.FileName)
	if name == "" {
		name = baseName(defaultFileName(f.FileID))
	}
	if name == "" {
		return "", errUnsafeName
	}
	if used[name] {
		name = baseName(f.FileID + "_" + name)
		if name == "" {
			return "", errUnsafeName
		}
		if used[name] {
			return "", fmt.Errorf("duplicate file name %q", name)
		}
	}
	used[name] = true
	return name, nil
}

// baseName reduces a remote-supplied name to a single path element, or "".
func baseName(s string) string {
	name := filepath.Base(filepath.Clean("/" + filepath.FromSlash(s)))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/sirupsen/logrus"
)

const maxArchiveFiles = 10000 // zip-bomb protection

var errArchiveLimit = errors.New("archive file limit reached")

// IsArchive by extension. O(1) map lookup
var archiveExt = map[string]struct{}{
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {},
	".rar": {}, ".br": {}, ".lz4": {}, ".lz": {}, ".mz": {},
	".sz": {}, ".s2": {}, ".zz": {}, ".zst": {}, ".7z": {},
}

func IsArchive(path string) bool {
	_, ok := archiveExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Task describes a unit of work: a plain file or one entry of an archive.
type Task struct {
	path      string
	innerPath string
	isArchive bool
	empty     bool   // archive without regular entries
	content   string // archive entry text, read while walking the archive
	err       error  // set when the task could not be prepared; it reports this as its outcome
}

// Name is the label used in reports and diagnostics.
func (t Task) Name() string {
	if t.innerPath == "" {
		return t.path
	}
	return t.path + ":" + t.innerPath
}

// ExpandTasks turns the input filenames into tasks, in argument order.
// Without archives every filename is one task. With archives, a file with an
// archive extension becomes one task per regular entry.
func ExpandTasks(ctx context.Context, filenames []string, withArchives bool) []Task {
	tasks := make([]Task, 0, len(filenames))
	for _, name := range filenames {
		if !withArchives || !IsArchive(name) {
			tasks = append(tasks, Task{path: name})
			continue
		}
		entries, err := WalkArchive(ctx, name)
		if err != nil {
			tasks = append(tasks, Task{path: name, err: &FileError{Filename: name, Err: err}})
			continue
		}
		if len(entries) == 0 {
			tasks = append(tasks, Task{path: name, isArchive: true, empty: true})
			continue
		}
		tasks = append(tasks, entries...)
	}
	return tasks
}

// WalkArchive lists the regular files inside an archive as tasks and reads
// their text in the same pass, so a compressed tarball is decompressed once.
// An entry that cannot be read becomes a failing task of its own.
func WalkArchive(ctx context.Context, path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	format, stream, err := archives.Identify(ctx, path, f)
	if err != nil && !errors.Is(err, archives.NoMatch) {
		return nil, fmt.Errorf("identify archive: %w", err)
	}
	ex, ok := format.(archives.Extractor)
	if err != nil || !ok {
		// single compressed file, or nothing recognizable
		return walkFS(ctx, path)
	}

	var tasks []Task
	err = ex.Extract(ctx, stream, func(ctx context.Context, info archives.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		if len(tasks) >= maxArchiveFiles {
			logrus.Warnf("Archive %s truncated: too many files (>= %d)", path, maxArchiveFiles)
			return errArchiveLimit
		}
		t := Task{path: path, innerPath: info.NameInArchive, isArchive: true}
		t.content, t.err = readEntry(t.Name(), func() (io.ReadCloser, error) { return info.Open() })
		tasks = append(tasks, t)
		return nil
	})
	if err != nil && !errors.Is(err, errArchiveLimit) {
		return nil, fmt.Errorf("extract archive: %w", err)
	}
	logrus.WithFields(logrus.Fields{"archive": path, "entries": len(tasks)}).Debug("Archive expanded")
	return tasks, nil
}

// walkFS reads path through archives.FileSystem; used for inputs that are not
// multi-file archives, such as app.log.gz.
func walkFS(ctx context.Context, path string) ([]Task, error) {
	fsys, err := archives.FileSystem(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer closer.Close()
	}

	var tasks []Task
	err = iofs.WalkDir(fsys, ".", func(inner string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(tasks) >= maxArchiveFiles {
			return errArchiveLimit
		}
		t := Task{path: path, innerPath: inner, isArchive: true}
		if inner == "." {
			// the file itself, e.g. app.log.gz
			t.innerPath = ""
		}
		t.content, t.err = readEntry(t.Name(), func() (io.ReadCloser, error) { return fsys.Open(inner) })
		tasks = append(tasks, t)
		return nil
	})
	if err != nil && !errors.Is(err, errArchiveLimit) {
		return nil, fmt.Errorf("walk archive: %w", err)
	}
	return tasks, nil
}

func readEntry(name string, open func() (io.ReadCloser, error)) (string, error) {
	f, err := open()
	if err != nil {
		return "", &FileError{Filename: name, Err: err}
	}
	defer f.Close()
	content, err := readText(f)
	if err != nil {
		return "", &FileError{Filename: name, Err: err}
	}
	return content, nil
}

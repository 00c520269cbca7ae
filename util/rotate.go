package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// DailyFile is an append-only log file that is moved aside as
// <name>.YYYY-MM-DD when [DailyFile.Rotate] runs on a later day than
// the one the current file was started on.  Writes are serialised.
type DailyFile struct {
	mu   sync.Mutex
	dir  string
	name string
	f    *os.File
	day  string // day the current file belongs to
	now  func() time.Time

	closed bool
}

// OpenDailyFile creates dir if needed and opens dir/name for appending.
// A non-empty file left over from an earlier day keeps that day, so the
// next Rotate files it under the right date.
func OpenDailyFile(dir, name string) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("log dir %s: %w", dir, err)
	}
	d := &DailyFile{dir: dir, name: name, now: time.Now}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the path of the active file.
func (d *DailyFile) Path() string { return filepath.Join(d.dir, d.name) }

func (d *DailyFile) open() error {
	path := d.Path()
	day := d.now().Format(dayLayout)
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		day = fi.ModTime().Format(dayLayout)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	d.f = f
	d.day = day
	return nil
}

// Write appends p to the active file, reopening it if a previous
// rotation failed half way.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, os.ErrClosed
	}
	if d.f == nil {
		if err := d.open(); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

// Rotate moves the active file to <name>.<day> and starts a new one.
// It is a no-op while the active file still belongs to today.
func (d *DailyFile) Rotate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.day == d.now().Format(dayLayout) {
		return nil
	}
	if d.f != nil {
		d.f.Close() //nolint:errcheck
		d.f = nil
	}

	backup := d.Path() + "." + d.day
	var err error
	if _, statErr := os.Stat(backup); statErr == nil {
		err = appendAndRemove(d.Path(), backup)
	} else {
		err = os.Rename(d.Path(), backup)
	}
	if openErr := d.open(); openErr != nil {
		return openErr
	}
	if err != nil {
		return fmt.Errorf("rotate %s: %w", d.Path(), err)
	}
	return nil
}

// Prune deletes the oldest dated backups so that at most keep remain.
func (d *DailyFile) Prune(keep int) error {
	backups, err := d.Backups()
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	var errs []error
	for len(backups) > keep {
		if err := os.Remove(backups[0]); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
		backups = backups[1:]
	}
	if len(errs) > 0 {
		return fmt.Errorf("prune: %v", errs)
	}
	return nil
}

// Backups lists the dated backups of the active file, oldest first.
func (d *DailyFile) Backups() ([]string, error) {
	matches, err := filepath.Glob(d.Path() + ".*")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		suffix := strings.TrimPrefix(m, d.Path()+".")
		if _, err := time.Parse(dayLayout, suffix); err == nil {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close closes the active file.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func appendAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

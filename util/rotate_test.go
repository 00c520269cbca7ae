package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDailyFile_WriteAndPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	d, err := OpenDailyFile(dir, "fake_ssh.log")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if _, err := d.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("got %q", data)
	}
}

func TestDailyFile_RotateSameDayIsNoop(t *testing.T) {
	d, err := OpenDailyFile(t.TempDir(), "a.log")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	d.Write([]byte("x\n")) //nolint:errcheck

	if err := d.Rotate(); err != nil {
		t.Fatal(err)
	}
	backups, _ := d.Backups()
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %v", backups)
	}
}

func TestDailyFile_Rotate(t *testing.T) {
	d, err := OpenDailyFile(t.TempDir(), "a.log")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	d.day = "2026-03-01"
	d.now = fixedClock(time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local))
	d.Write([]byte("day one\n")) //nolint:errcheck

	if err := d.Rotate(); err != nil {
		t.Fatal(err)
	}
	backup := d.Path() + ".2026-03-01"
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(data) != "day one\n" {
		t.Errorf("backup = %q", data)
	}

	d.Write([]byte("day two\n")) //nolint:errcheck
	data, _ = os.ReadFile(d.Path())
	if string(data) != "day two\n" {
		t.Errorf("active = %q", data)
	}
	if d.day != "2026-03-02" {
		t.Errorf("day = %q, want 2026-03-02", d.day)
	}
}

func TestDailyFile_RotateAppendsToExistingBackup(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDailyFile(dir, "a.log")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	backup := d.Path() + ".2026-03-01"
	if err := os.WriteFile(backup, []byte("earlier\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d.day = "2026-03-01"
	d.now = fixedClock(time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local))
	d.Write([]byte("later\n")) //nolint:errcheck

	if err := d.Rotate(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(backup)
	if string(data) != "earlier\nlater\n" {
		t.Errorf("backup = %q", data)
	}
}

func TestDailyFile_StaleFileKeepsItsDay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.log")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Date(2026, 1, 5, 12, 0, 0, 0, time.Local)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	d, err := OpenDailyFile(dir, "a.log")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.day != "2026-01-05" {
		t.Fatalf("day = %q, want 2026-01-05", d.day)
	}
	if err := d.Rotate(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".2026-01-05"); err != nil {
		t.Errorf("stale file not rotated: %v", err)
	}
}

func TestDailyFile_Prune(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDailyFile(dir, "a.log")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	days := []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04"}
	for _, day := range days {
		os.WriteFile(d.Path()+"."+day, []byte(day), 0o644) //nolint:errcheck
	}
	os.WriteFile(d.Path()+".notadate", nil, 0o644) //nolint:errcheck

	if err := d.Prune(2); err != nil {
		t.Fatal(err)
	}
	backups, err := d.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups, got %v", backups)
	}
	if !strings.HasSuffix(backups[0], "2026-01-03") || !strings.HasSuffix(backups[1], "2026-01-04") {
		t.Errorf("wrong backups kept: %v", backups)
	}
	if _, err := os.Stat(d.Path() + ".notadate"); err != nil {
		t.Error("unrelated file should be left alone")
	}
}

func TestDailyFile_WriteAfterClose(t *testing.T) {
	d, err := OpenDailyFile(t.TempDir(), "a.log")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Write([]byte("x")); err == nil {
		t.Error("expected error writing to closed file")
	}
	if err := d.Rotate(); err != nil {
		t.Errorf("Rotate after Close: %v", err)
	}
}

package sqlite

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Backup writes a consistent snapshot of the working database to destPath.
// database/sql has no access to SQLite's native online-backup API, so this
// folds the WAL into the main file with a checkpoint and then copies the
// file to a temp sibling of destPath before renaming it into place — the
// rename is atomic on a POSIX filesystem, so a reader of destPath never
// observes a partially-written backup.
func (d *DB) Backup(destPath string) error {
	if _, err := d.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpoint before backup: %w", err)
	}

	if dir := filepath.Dir(destPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create backup dir: %w", err)
		}
	}

	src, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open working database: %w", err)
	}
	defer src.Close()

	tmpPath := destPath + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create backup temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy database to backup temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync backup temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close backup temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename backup into place: %w", err)
	}
	return nil
}

// RestoreFromBackup copies backupPath over workingPath. Intended to be
// called before Open, when the working database file is absent or
// zero-length — a fresh volume mount, or a crash mid-write to the working
// file that left it truncated.
func RestoreFromBackup(workingPath, backupPath string) error {
	info, err := os.Stat(workingPath)
	if err == nil && info.Size() > 0 {
		return nil
	}

	backupInfo, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("stat backup file: %w", err)
	}
	if backupInfo.Size() == 0 {
		return fmt.Errorf("backup file %s is empty, refusing to restore", backupPath)
	}

	if dir := filepath.Dir(workingPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create working dir: %w", err)
		}
	}

	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(workingPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create working database file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy backup to working path: %w", err)
	}
	return dst.Close()
}

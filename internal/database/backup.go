package database

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Backup copies the database file to dest. Good enough for a SQLite
// deployment; anything fancier lives behind the same call site.
func (db *DB) Backup(dbPath, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	source, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}
	return nil
}

// CleanupOldBackups removes backup files older than the retention
// window from dir.
func CleanupOldBackups(dir string, retention time.Duration) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-retention)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(dir, file.Name()))
		}
	}
	return nil
}

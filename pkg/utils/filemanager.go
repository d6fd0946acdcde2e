// =============================================================================
// folio - File Manager Utility
// =============================================================================
//
// This module provides file utilities for the import commands:
//   - Input discovery (a directory of broker exports)
//   - Pre-import database backups
//
// BACKUP NAMING:
//   <backup dir>/<file name with "." replaced by "_">/<stem>_<timestamp>_<rows><ext>
//   e.g. data/backups/folio_db/folio_20250110_093000_1523.db
//
// Backups are never rotated; pruning old copies is left to the user.
//
// =============================================================================

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is the timestamp used in backup names.
const TimestampLayout = "20060102_150405"

// =============================================================================
// BACKUP MANAGER
// =============================================================================

// BackupManager copies files into a backup directory.
type BackupManager struct {
	// Dir is the backup root.
	Dir string

	// Now returns the backup timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewBackupManager creates a BackupManager rooted at dir.
func NewBackupManager(dir string) *BackupManager {
	return &BackupManager{Dir: dir, Now: time.Now}
}

// Backup copies a file into its backup subdirectory.
//
// PARAMETERS:
//   - filePath: the file to copy.
//   - rows: the row count recorded in the name; negative omits it.
//
// RETURNS:
//   - The path of the copy.
//   - An error if the source is missing or the copy fails.
func (bm *BackupManager) Backup(filePath string, rows int) (string, error) {
	if !FileExists(filePath) {
		return "", fmt.Errorf("failed to back up %s: file not found", filePath)
	}

	target := bm.TargetPath(filePath, rows)
	if err := EnsureDir(filepath.Dir(target)); err != nil {
		return "", err
	}
	if err := copyFile(filePath, target); err != nil {
		return "", fmt.Errorf("failed to copy %s to backup: %w", filePath, err)
	}
	return target, nil
}

// TargetPath returns where a backup of filePath taken now would be written.
func (bm *BackupManager) TargetPath(filePath string, rows int) string {
	now := time.Now
	if bm.Now != nil {
		now = bm.Now
	}

	name := filepath.Base(filePath)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	subdir := filepath.Join(bm.Dir, strings.ReplaceAll(name, ".", "_"))

	fileName := fmt.Sprintf("%s_%s", stem, now().Format(TimestampLayout))
	if rows >= 0 {
		fileName += fmt.Sprintf("_%d", rows)
	}
	return filepath.Join(subdir, fileName+ext)
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the files in dir whose extension is one of exts
// (case-insensitive), sorted by name. Subdirectories are not scanned.
func DiscoverInputFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == strings.ToLower(want) {
				result = append(result, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(result)
	return result, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst. A partial copy is removed.
func copyFile(src, dst string) (err error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := destFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a regular file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDir creates a directory and its parents if they do not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// IsDir reports whether path is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

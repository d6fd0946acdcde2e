package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "folio.db")
	if err := os.WriteFile(src, []byte("sqlite"), 0644); err != nil {
		t.Fatal(err)
	}

	bm := NewBackupManager(filepath.Join(dir, "backups"))
	bm.Now = func() time.Time { return time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC) }

	got, err := bm.Backup(src, 1523)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "backups", "folio_db", "folio_20250110_093000_1523.db")
	if got != want {
		t.Errorf("Backup path = %s, want %s", got, want)
	}
	data, err := os.ReadFile(got)
	if err != nil || string(data) != "sqlite" {
		t.Errorf("backup content = %q, %v", data, err)
	}

	if p := bm.TargetPath("/tmp/config.yaml", -1); filepath.Base(p) != "config_20250110_093000.yaml" {
		t.Errorf("TargetPath = %s", p)
	}
}

func TestBackupMissingFile(t *testing.T) {
	bm := NewBackupManager(t.TempDir())
	if _, err := bm.Backup(filepath.Join(t.TempDir(), "nope.db"), 0); err == nil {
		t.Error("expected error")
	}
}

func TestDiscoverInputFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.CSV", "a.xlsx", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0644)
	}
	os.Mkdir(filepath.Join(dir, "sub.csv"), 0755)

	files, err := DiscoverInputFiles(dir, ".csv", ".xlsx")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.xlsx"), filepath.Join(dir, "b.CSV")}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("files = %v, want %v", files, want)
	}
	if !IsDir(dir) || IsDir(files[0]) || !FileExists(files[0]) {
		t.Error("IsDir/FileExists mismatch")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "folio.db")
	if err := os.WriteFile(src, []byte("sqlite"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		src     string
		dst     string
		wantErr bool
	}{
		{"copies content", src, filepath.Join(dir, "copy.db"), false},
		{"missing destination directory", src, filepath.Join(dir, "nope", "copy.db"), true},
		{"unreadable source removes partial copy", dir, filepath.Join(dir, "partial.db"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := copyFile(tt.src, tt.dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("copyFile err = %v, wantErr %v", err, tt.wantErr)
			}
			_, statErr := os.Stat(tt.dst)
			if tt.wantErr {
				if statErr == nil {
					t.Errorf("%s left behind after a failed copy", tt.dst)
				}
				return
			}
			if data, err := os.ReadFile(tt.dst); err != nil || string(data) != "sqlite" {
				t.Errorf("copy content = %q, %v", data, err)
			}
		})
	}
}

package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetDiskSpace(t *testing.T) {
	dir := t.TempDir()

	info, err := GetDiskSpace(dir)
	if err != nil {
		t.Fatalf("GetDiskSpace() error = %v", err)
	}
	if info.Total <= 0 || info.Free < 0 || info.Free > info.Total {
		t.Errorf("info = %+v", info)
	}
	if info.Path != dir {
		t.Errorf("Path = %q, want %q", info.Path, dir)
	}
}

func TestGetDiskSpaceResolvesAncestors(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "history.db")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := GetDiskSpace(file)
	if err != nil || info.Path != dir {
		t.Errorf("GetDiskSpace(file) = %+v, %v; want path %q", info, err, dir)
	}

	missing := filepath.Join(dir, "a", "b", "history.db")
	info, err = GetDiskSpace(missing)
	if err != nil || info.Path != dir {
		t.Errorf("GetDiskSpace(missing) = %+v, %v; want path %q", info, err, dir)
	}
}

func TestDiskSpaceError(t *testing.T) {
	err := &DiskSpaceError{Path: "/data", Required: 2048, Available: 1024}
	msg := err.Error()
	if !strings.Contains(msg, "/data") || !strings.Contains(msg, "2.00 KB") || !strings.Contains(msg, "1.00 KB") {
		t.Errorf("Error() = %q", msg)
	}
}

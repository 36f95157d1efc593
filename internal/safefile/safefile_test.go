package safefile

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestOpenRegular_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	if err := os.WriteFile(path, []byte("log content"), 0644); err != nil {
		t.Fatal(err)
	}

	f, info, err := OpenRegular(path)
	if err != nil {
		t.Fatalf("OpenRegular() error = %v, want nil", err)
	}
	defer f.Close()

	if !info.Mode().IsRegular() {
		t.Error("expected regular file")
	}
	if info.Size() != int64(len("log content")) {
		t.Errorf("Size() = %d, want %d", info.Size(), len("log content"))
	}

	buf := make([]byte, 11)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf[:n]) != "log content" {
		t.Errorf("Read() = %q, want %q", string(buf[:n]), "log content")
	}
}

func TestOpenRegular_FileNotExist(t *testing.T) {
	_, _, err := OpenRegular("/nonexistent/path/server.log")
	if err == nil {
		t.Error("OpenRegular() expected error for nonexistent file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("OpenRegular() error = %v, want os.IsNotExist", err)
	}
}

func TestOpenRegular_RejectsSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test requires Unix")
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "target.log")
	link := filepath.Join(dir, "link.log")

	if err := os.WriteFile(target, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	_, _, err := OpenRegular(link)
	if !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("OpenRegular() error = %v, want ErrNotRegularFile", err)
	}
}

func TestOpenRegular_RejectsDirectory(t *testing.T) {
	_, _, err := OpenRegular(t.TempDir())
	if !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("OpenRegular() error = %v, want ErrNotRegularFile", err)
	}
}

func TestOpenRegular_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	f, info, err := OpenRegular(path)
	if err != nil {
		t.Fatalf("OpenRegular() error = %v, want nil", err)
	}
	defer f.Close()

	if info.Size() != 0 {
		t.Errorf("Size() = %d, want 0", info.Size())
	}
}

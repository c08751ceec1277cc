//go:build unix

package rdc2

import (
	"io"
	"os"
	"testing"
)

func TestOpenWritablePersists(t *testing.T) {
	path := testWriteImage(t)

	img, err := OpenWritable(path)
	if err != nil {
		t.Fatalf("OpenWritable() returned error: %v", err)
	}
	root, err := img.Root()
	if err != nil {
		t.Fatalf("Root() returned error: %v", err)
	}
	cursor, err := root.Cursor()
	if err != nil {
		t.Fatalf("Cursor() returned error: %v", err)
	}
	if _, err := cursor.Seek(32, io.SeekStart); err != nil {
		t.Fatalf("Seek() returned error: %v", err)
	}
	if _, err := cursor.Write([]byte("mark")); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	if err := img.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	// with a shared mapping the write must be visible in the file
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("could not read the image back: %v", err)
	}
	if got := string(raw[9*1024+32 : 9*1024+36]); got != "mark" {
		t.Errorf("file bytes after a writable mapping = %q, want %q", got, "mark")
	}
}

package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeVideoHeader is an MP4 ftyp box prefix.
var fakeVideoHeader = []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}

// WriteFile creates path (and its parents) holding size bytes of placeholder
// video data. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	var body bytes.Buffer
	body.Grow(int(size))
	body.Write(fakeVideoHeader)
	for i := 0; int64(body.Len()) < size; i++ {
		body.WriteByte(byte(i % 251))
	}
	if err := os.WriteFile(path, body.Bytes()[:size], 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFileAt writes a file and stamps its modification time, which the
// watcher uses to order segments.
func WriteFileAt(t testing.TB, path string, size int64, mtime time.Time) {
	t.Helper()

	WriteFile(t, path, size)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

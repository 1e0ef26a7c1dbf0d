package cvtext

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractPlainText(t *testing.T) {
	path := writeTemp(t, "cv.txt", []byte("  Alice Smith\nGo, Kubernetes, Postgres\n"))

	text, err := Extractor{}.Extract(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "Alice Smith\nGo, Kubernetes, Postgres" {
		t.Errorf("got %q", text)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	blob := make([]byte, 200)
	for i := range blob {
		blob[i] = byte(i % 7)
	}
	path := writeTemp(t, "cv.pdf", blob)

	if _, err := (Extractor{}).Extract(path); err == nil {
		t.Fatal("want error for binary input")
	}
}

func TestExtractRejectsEmpty(t *testing.T) {
	path := writeTemp(t, "cv.txt", []byte("   \n  "))
	if _, err := (Extractor{}).Extract(path); err == nil {
		t.Fatal("want error for empty cv")
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := (Extractor{}).Extract(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("want error for missing file")
	}
}

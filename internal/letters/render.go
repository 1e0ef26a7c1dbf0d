package letters

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"autoapply-engine/internal/domain"
)

var pathClean = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)

// Renderer writes cover letters as text artifacts under Dir, one folder per
// user.
type Renderer struct {
	Dir string
}

func (r Renderer) Render(userID string, p domain.Posting, letter string) (string, error) {
	userDir := filepath.Join(r.Dir, sanitize(userID))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s-%s.txt",
		sanitize(p.Company), sanitize(p.ID), time.Now().UTC().Format("20060102"))
	path := filepath.Join(userDir, name)

	if err := os.WriteFile(path, []byte(letter), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "@", "_at_")
	s = strings.ReplaceAll(s, ".", "_dot_")
	s = pathClean.ReplaceAllString(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

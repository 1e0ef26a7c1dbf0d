// Package cvtext extracts plain text from stored CV files.
package cvtext

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Extractor reads text-based CVs (txt, md). Binary formats are rejected
// rather than half-decoded: a garbled CV produces garbled letters.
type Extractor struct{}

func (Extractor) Extract(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read cv: %w", err)
	}

	text := strings.ToValidUTF8(string(b), "")
	printable := 0
	for _, r := range text {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if len(text) == 0 || printable*10 < len([]rune(text))*9 {
		return "", errors.New("cv does not look like plain text; convert it to .txt first")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("cv file is empty")
	}
	return text, nil
}

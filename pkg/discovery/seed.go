package discovery

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// SeedFile reads candidate URLs from a file, one per line.
// Blank lines and lines starting with # are ignored.
type SeedFile struct {
	path string
}

// NewSeedFile creates a seed file discoverer
func NewSeedFile(path string) *SeedFile {
	return &SeedFile{path: path}
}

// Discover returns the file's URLs in order. The window does not apply.
func (s *SeedFile) Discover(ctx context.Context, q Query) ([]Candidate, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	var candidates []Candidate
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Remove trailing commas and whitespace
		line = strings.TrimRight(line, ", \t")
		if line == "" {
			continue
		}

		candidates = append(candidates, Candidate{URL: line})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading seed file at line %d: %w", lineNum, err)
	}
	return candidates, nil
}

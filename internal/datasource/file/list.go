package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadList reads a text file line by line and returns the non-empty,
// non-comment lines in order. Lines starting with '#' after trimming are
// comments.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFirst returns the first entry of a list file, e.g. an API key file.
func ReadFirst(path string) (string, error) {
	lines, err := ReadList(path)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("file: %s has no entries", path)
	}
	return lines[0], nil
}

// ListPartitions returns the regular files in dir whose extension matches
// ext (case-insensitive, with or without the dot), sorted by name so the
// partition order is deterministic. Subdirectories are not descended.
func ListPartitions(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("file: list %s: %w", dir, err)
	}
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ext != "" && strings.ToLower(filepath.Ext(e.Name())) != ext {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

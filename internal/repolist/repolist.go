// Package repolist parses the repository allow-list file: one repository
// per line, optionally mapped to a differently-named target repository.
package repolist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Entry is one allow-list line. Target equals Source unless the line used
// the "source,target" mapping form.
type Entry struct {
	Source string
	Target string
}

// Read parses the file at path. Blank lines and #-prefixed comments are
// ignored.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open repository list: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		source, target, mapped := strings.Cut(line, ",")
		source = strings.TrimSpace(source)
		target = strings.TrimSpace(target)
		if source == "" || (mapped && target == "") {
			return nil, fmt.Errorf("repository list line %d: malformed entry %q", lineNo, line)
		}
		if !mapped {
			target = source
		}
		entries = append(entries, Entry{Source: source, Target: target})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read repository list: %w", err)
	}
	return entries, nil
}

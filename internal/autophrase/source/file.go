package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const maxLineBytes = 1 << 20

// FileLoader reads UTF-8 text files. Relative paths resolve against Dir.
// Lines end at LF or CRLF; the line terminator is never part of a line.
type FileLoader struct {
	Dir string
}

// Path returns the file location resolves to.
func (l FileLoader) Path(location string) string {
	if filepath.IsAbs(location) || l.Dir == "" {
		return filepath.Clean(location)
	}
	return filepath.Join(l.Dir, location)
}

func (l FileLoader) Lines(ctx context.Context, location string) ([]string, error) {
	path := l.Path(location)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(lines)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

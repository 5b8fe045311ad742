package resource

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

const maxLineBytes = 1 << 20

// ScanLines calls fn for every non-blank line of a UTF-8 text file, trimmed of
// surrounding whitespace. lineNo is 1-based. A leading byte order mark is
// dropped. Failing to open or read the file is an I/O error; errors returned
// by fn are passed through unchanged.
func ScanLines(path string, fn func(lineNo int, line string) error) error {
	op := "reading " + filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return perrors.IO(op, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return perrors.IO(op, err)
	}
	return nil
}

// ReadLines returns the trimmed non-blank lines of path in file order.
func ReadLines(path string) ([]string, error) {
	var lines []string
	err := ScanLines(path, func(_ int, line string) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

package genomes

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

var md5Pattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ParseChecksums parses an md5checksums.txt manifest: one
// "<digest>  <path>" pair per line, paths usually prefixed with "./".
// Entries are keyed by bare filename. Lines that do not look like manifest
// entries are skipped; only a read failure is an error.
func ParseChecksums(r io.Reader) (map[string]string, error) {
	sums := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}

		digest := strings.ToLower(fields[0])
		if !md5Pattern.MatchString(digest) {
			continue
		}

		name := path.Base(strings.TrimPrefix(fields[1], "./"))
		if name == "" || name == "." {
			continue
		}
		sums[name] = digest
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checksum manifest: %w", err)
	}

	return sums, nil
}

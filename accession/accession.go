// Package accession parses NCBI assembly accession tokens.
//
// An accession has the form {PREFIX}_{DATABASE}_{ID}.{RECORD}, e.g.
// "GB_GCA_000195005.1". PREFIX (GB for GenBank, RS for RefSeq) is
// informational and may be omitted; DATABASE is GCA or GCF; ID is exactly
// nine digits; RECORD is a positive integer distinguishing sub-records that
// share an ID.
package accession

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// pattern anchors the full token. The two-letter prefix is optional; the
// archive derives nothing from it.
var pattern = regexp.MustCompile(`^(?:(GB|RS)_)?(GCA|GCF)_([0-9]{9})\.([0-9]+)$`)

// Accession is a parsed accession token. The zero value is not valid; use
// Parse.
type Accession struct {
	// Prefix is the source database hint (GB or RS), empty when the bare
	// form was given. It is carried verbatim and never cross-checked
	// against Database.
	Prefix string

	// Database is GCA (GenBank) or GCF (RefSeq).
	Database string

	// ID is the nine-digit assembly identifier.
	ID string

	// Record is the sub-record number, at least 1.
	Record int
}

// Parse decomposes a token into an Accession. It performs no I/O; malformed
// tokens fail with a *MalformedAccessionError before any network call.
func Parse(token string) (Accession, error) {
	m := pattern.FindStringSubmatch(token)
	if m == nil {
		return Accession{}, &MalformedAccessionError{Token: token, Reason: "expected {GB|RS}_{GCA|GCF}_{9 digits}.{record}"}
	}

	record, err := strconv.Atoi(m[4])
	if err != nil {
		return Accession{}, &MalformedAccessionError{Token: token, Reason: "record is not a number"}
	}
	if record < 1 {
		return Accession{}, &MalformedAccessionError{Token: token, Reason: "record must be positive"}
	}

	return Accession{
		Prefix:   m[1],
		Database: m[2],
		ID:       m[3],
		Record:   record,
	}, nil
}

// MustParse is like Parse but panics on malformed tokens. For tests and
// fixtures.
func MustParse(token string) Accession {
	a, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return a
}

// IDParts returns the three positional 3-digit groups of ID, the unit the
// archive shards its directory tree by.
func (a Accession) IDParts() (string, string, string) {
	return a.ID[0:3], a.ID[3:6], a.ID[6:9]
}

// Key returns the canonical {DATABASE}_{ID}.{RECORD} form, the stable prefix
// of the record's directory name in the archive.
func (a Accession) Key() string {
	return fmt.Sprintf("%s_%s.%d", a.Database, a.ID, a.Record)
}

// String returns the token including the source prefix when one was given.
func (a Accession) String() string {
	if a.Prefix == "" {
		return a.Key()
	}
	return a.Prefix + "_" + a.Key()
}

// ParseList reads one token per line, ignoring blank lines and lines starting
// with '#'. Duplicate tokens (by canonical Key) keep their first occurrence.
// Malformed lines do not stop the scan; they are returned separately so the
// caller can report them.
func ParseList(r io.Reader) ([]Accession, []*MalformedAccessionError, error) {
	var (
		accessions []Accession
		malformed  []*MalformedAccessionError
		seen       = make(map[string]struct{})
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		a, err := Parse(line)
		if err != nil {
			var me *MalformedAccessionError
			if errors.As(err, &me) {
				malformed = append(malformed, me)
				continue
			}
			return nil, nil, err
		}

		if _, ok := seen[a.Key()]; ok {
			continue
		}
		seen[a.Key()] = struct{}{}
		accessions = append(accessions, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read accession list: %w", err)
	}

	return accessions, malformed, nil
}

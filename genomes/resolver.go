// Package genomes derives archive locations and object keys for assembly
// records and selects which record files to transfer.
//
// Resolution is two-phase. The accession determines the parent directory
// (genomes/all/{DATABASE}/{P1}/{P2}/{P3}) but not the record directory
// inside it: the archive appends a free-text assembly label to the
// {DATABASE}_{ID}.{RECORD} prefix, so the caller must list the parent and
// match the record directory by prefix.
package genomes

import (
	"path"
	"sort"
	"strings"

	"github.com/kbase/cdm-transfers/accession"
)

// archiveRoot is where the archive shards assembly records by database and
// the three ID groups.
const archiveRoot = "genomes/all"

// ChecksumManifest is the per-record checksum file published by the archive.
const ChecksumManifest = "md5checksums.txt"

// DirectoryPath returns the parent directory of an accession's record
// directory, relative to the archive root.
func DirectoryPath(a accession.Accession) string {
	p1, p2, p3 := a.IDParts()
	return path.Join(archiveRoot, a.Database, p1, p2, p3)
}

// DatabaseRoot returns the archive directory holding all records of one
// database (GCA or GCF). Prefix scans walk down from here.
func DatabaseRoot(database string) string {
	return path.Join(archiveRoot, database)
}

// MatchRecordDir finds the single directory entry matching
// {DATABASE}_{ID}.{RECORD}_. Zero matches fail with *NoRecordError; more
// than one fails with *AmbiguousRecordError rather than picking either.
func MatchRecordDir(entries []string, a accession.Accession) (string, error) {
	prefix := a.Key() + "_"

	var matches []string
	for _, e := range entries {
		if strings.HasPrefix(e, prefix) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NoRecordError{Accession: a.String(), Dir: DirectoryPath(a)}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousRecordError{Accession: a.String(), Matches: matches}
	}
}

// Resolution is a fully resolved record location: the accession plus the
// record directory discovered by listing.
type Resolution struct {
	Accession accession.Accession
	RecordDir string
}

// ResolveRecord completes the second resolution phase against a parent
// directory listing.
func ResolveRecord(entries []string, a accession.Accession) (Resolution, error) {
	recordDir, err := MatchRecordDir(entries, a)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Accession: a, RecordDir: recordDir}, nil
}

// Label returns the archive-assigned assembly label, the part of the record
// directory after {DATABASE}_{ID}.{RECORD}_.
func (r Resolution) Label() string {
	return strings.TrimPrefix(r.RecordDir, r.Accession.Key()+"_")
}

// RemoteDir returns the record directory path on the archive.
func (r Resolution) RemoteDir() string {
	return path.Join(DirectoryPath(r.Accession), r.RecordDir)
}

// RemotePath returns the archive path of a file inside the record directory.
func (r Resolution) RemotePath(name string) string {
	return path.Join(r.RemoteDir(), name)
}

// KeyPrefix returns the record's key prefix inside the object store,
// {DATABASE}/{P1}/{P2}/{P3}/{recordDir}.
func (r Resolution) KeyPrefix() string {
	p1, p2, p3 := r.Accession.IDParts()
	return path.Join(r.Accession.Database, p1, p2, p3, r.RecordDir)
}

// ObjectDir returns the full object-store directory for the record: the
// configured base prefix, the raw_data segment, then the key prefix.
func (r Resolution) ObjectDir(base string) string {
	return path.Join(base, "raw_data", r.KeyPrefix())
}

// ObjectKey returns the full object key for a file of the record.
func (r Resolution) ObjectKey(base, name string) string {
	return path.Join(r.ObjectDir(base), name)
}

package testutil

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/kbase/cdm-transfers/accession"
	"github.com/kbase/cdm-transfers/archive"
	"github.com/kbase/cdm-transfers/genomes"
)

// MD5Hex returns the hex MD5 digest of data, the digest form used by
// checksum manifests and by single-part object ETags.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Gzip compresses payload. Record fixtures use it for their *.gz members.
func Gzip(tb testing.TB, payload string) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		tb.Fatalf("gzip fixture: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("gzip fixture: %v", err)
	}

	return buf.Bytes()
}

// Record is a synthetic assembly record. Files holds the transferable
// members, Extra the members a transfer must leave behind; both are keyed
// by file name within the record directory.
type Record struct {
	Accession accession.Accession
	Label     string
	Files     map[string][]byte
	Extra     map[string][]byte
}

// NewRecord builds the canonical record fixture for token: three
// transferable files (an assembly report and two gzipped sequence files)
// plus two members outside the transfer set.
func NewRecord(tb testing.TB, token, label string) *Record {
	tb.Helper()

	acc, err := accession.Parse(token)
	if err != nil {
		tb.Fatalf("fixture token %q: %v", token, err)
	}

	dir := acc.Key() + "_" + label
	return &Record{
		Accession: acc,
		Label:     label,
		Files: map[string][]byte{
			dir + "_assembly_report.txt": []byte("# Assembly name:  " + label + "\n# Organism name:  Helicobacter pylori 2017\n"),
			dir + "_genomic.fna.gz":      Gzip(tb, ">contig1\nACGTACGTACGTACGT\n"),
			dir + "_protein.faa.gz":      Gzip(tb, ">protein1\nMKVLITGASGFIG\n"),
		},
		Extra: map[string][]byte{
			"README.txt":                  []byte("see ftp site for details\n"),
			dir + "_feature_table.txt.gz": Gzip(tb, "feature\ttable\n"),
		},
	}
}

// Dir returns the record directory name, {KEY}_{LABEL}.
func (r *Record) Dir() string {
	return r.Accession.Key() + "_" + r.Label
}

// Resolution returns the resolved location a pipeline would discover for
// the record.
func (r *Record) Resolution() genomes.Resolution {
	return genomes.Resolution{Accession: r.Accession, RecordDir: r.Dir()}
}

// RemoteDir returns the record's directory path on the archive.
func (r *Record) RemoteDir() string {
	return r.Resolution().RemoteDir()
}

// ObjectDir returns the record's object-store directory under base.
func (r *Record) ObjectDir(base string) string {
	return r.Resolution().ObjectDir(base)
}

// SelectedNames returns the transferable file names in the deterministic
// order a transfer reports them in.
func (r *Record) SelectedNames() []string {
	names := make([]string, 0, len(r.Files))
	for name := range r.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manifest renders an md5checksums.txt covering every member of the
// record directory, in the "<digest>  ./<name>" format the archive
// publishes.
func (r *Record) Manifest() []byte {
	names := make([]string, 0, len(r.Files)+len(r.Extra))
	for name := range r.Files {
		names = append(names, name)
	}
	for name := range r.Extra {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		data, ok := r.Files[name]
		if !ok {
			data = r.Extra[name]
		}
		fmt.Fprintf(&b, "%s  ./%s\n", MD5Hex(data), name)
	}

	return []byte(b.String())
}

// Seed populates arc with the record directory. With withManifest the
// directory also carries its md5checksums.txt.
func (r *Record) Seed(tb testing.TB, arc *archive.MemoryArchive, withManifest bool) {
	tb.Helper()

	dir := r.RemoteDir()
	for name, data := range r.Files {
		arc.AddFile(dir+"/"+name, data)
	}
	for name, data := range r.Extra {
		arc.AddFile(dir+"/"+name, data)
	}
	if withManifest {
		arc.AddFile(dir+"/"+genomes.ChecksumManifest, r.Manifest())
	}
}

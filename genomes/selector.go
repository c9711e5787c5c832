package genomes

import (
	"sort"
	"strings"
)

// fileSuffixes is the fixed table of record files worth transferring. A file
// is selected iff its name ends with one of these. Not every record has
// every kind: GAF annotations and expression counts exist only for RefSeq
// records, ANI reports and assembly text files are absent from
// GenBank-Datasets records. Absent kinds simply never match.
var fileSuffixes = []string{
	"_gene_ontology.gaf.gz",
	"_genomic.fna.gz",
	"_genomic.gff.gz",
	"_protein.faa.gz",
	"_ani_contam_ranges.tsv",
	"_assembly_regions.txt",
	"_assembly_report.txt",
	"_assembly_stats.txt",
	"_normalized_gene_expression_counts.txt.gz",
	"_gene_expression_counts.txt.gz",
}

// MatchesPattern reports whether a bare filename is one of the transferable
// record files.
func MatchesPattern(name string) bool {
	for _, suffix := range fileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// SelectNames filters a record directory listing down to the transferable
// files, sorted lexicographically so identical listings always produce
// identical output. An empty result is a valid outcome, not an error.
func SelectNames(names []string) []string {
	var selected []string
	for _, name := range names {
		if MatchesPattern(name) {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)
	return selected
}

// SelectedFile is a transferable record file with the archive path it is
// fetched from and the object key it is published under.
type SelectedFile struct {
	Name       string
	RemotePath string
	Key        string
}

// Selection filters the record directory listing and pairs every selected
// file with its remote path and object key under the given base prefix.
func (r Resolution) Selection(names []string, base string) []SelectedFile {
	selected := SelectNames(names)

	files := make([]SelectedFile, len(selected))
	for i, name := range selected {
		files[i] = SelectedFile{
			Name:       name,
			RemotePath: r.RemotePath(name),
			Key:        r.ObjectKey(base, name),
		}
	}
	return files
}

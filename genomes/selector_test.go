package genomes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbase/cdm-transfers/accession"
)

func TestSelectNames(t *testing.T) {
	names := []string{
		"GCA_000195005.1_ASM19500v1_protein.faa.gz",
		"GCA_000195005.1_ASM19500v1_genomic.fna.gz",
		"GCA_000195005.1_ASM19500v1_genomic.gff.gz",
		"GCA_000195005.1_ASM19500v1_genomic.gbff.gz", // not in the table
		"md5checksums.txt",
		"README.txt",
	}

	selected := SelectNames(names)
	assert.Equal(t, []string{
		"GCA_000195005.1_ASM19500v1_genomic.fna.gz",
		"GCA_000195005.1_ASM19500v1_genomic.gff.gz",
		"GCA_000195005.1_ASM19500v1_protein.faa.gz",
	}, selected)
}

func TestSelectNames_Deterministic(t *testing.T) {
	shuffled := []string{
		"x_protein.faa.gz",
		"a_genomic.fna.gz",
		"m_genomic.gff.gz",
	}
	reversed := []string{
		"m_genomic.gff.gz",
		"a_genomic.fna.gz",
		"x_protein.faa.gz",
	}

	assert.Equal(t, SelectNames(shuffled), SelectNames(reversed))
}

func TestSelectNames_Empty(t *testing.T) {
	assert.Empty(t, SelectNames(nil))
	assert.Empty(t, SelectNames([]string{"README.txt", "annotation_hashes.txt"}))
}

func TestMatchesPattern(t *testing.T) {
	matching := []string{
		"GCF_000005845.2_ASM584v2_gene_ontology.gaf.gz",
		"GCF_000005845.2_ASM584v2_ani_contam_ranges.tsv",
		"GCF_000005845.2_ASM584v2_assembly_report.txt",
		"GCF_000005845.2_ASM584v2_assembly_stats.txt",
		"GCF_000005845.2_ASM584v2_assembly_regions.txt",
		"GCF_000005845.2_ASM584v2_normalized_gene_expression_counts.txt.gz",
		"GCF_000005845.2_ASM584v2_gene_expression_counts.txt.gz",
	}
	for _, name := range matching {
		assert.True(t, MatchesPattern(name), name)
	}

	nonMatching := []string{
		"GCF_000005845.2_ASM584v2_genomic.gtf.gz",
		"GCF_000005845.2_ASM584v2_feature_table.txt.gz",
		"assembly_status.txt",
		"md5checksums.txt",
	}
	for _, name := range nonMatching {
		assert.False(t, MatchesPattern(name), name)
	}
}

func TestResolution_Selection(t *testing.T) {
	res := Resolution{
		Accession: accession.MustParse("GB_GCA_000195005.1"),
		RecordDir: "GCA_000195005.1_ASM19500v1",
	}

	names := []string{
		"GCA_000195005.1_ASM19500v1_genomic.fna.gz",
		"md5checksums.txt",
	}

	files := res.Selection(names, "base/prefix")
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, "GCA_000195005.1_ASM19500v1_genomic.fna.gz", f.Name)
	assert.Equal(t,
		"genomes/all/GCA/000/195/005/GCA_000195005.1_ASM19500v1/GCA_000195005.1_ASM19500v1_genomic.fna.gz",
		f.RemotePath)
	assert.Equal(t,
		"base/prefix/raw_data/GCA/000/195/005/GCA_000195005.1_ASM19500v1/GCA_000195005.1_ASM19500v1_genomic.fna.gz",
		f.Key)
}

func TestResolution_Selection_EmptyListing(t *testing.T) {
	res := Resolution{
		Accession: accession.MustParse("GB_GCA_000195005.1"),
		RecordDir: "GCA_000195005.1_ASM19500v1",
	}

	files := res.Selection(nil, "")
	assert.Empty(t, files)
}

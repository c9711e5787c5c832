package accession

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  Accession
	}{
		{
			name:  "genbank with prefix",
			token: "GB_GCA_000195005.1",
			want:  Accession{Prefix: "GB", Database: "GCA", ID: "000195005", Record: 1},
		},
		{
			name:  "refseq with prefix",
			token: "RS_GCF_000005845.2",
			want:  Accession{Prefix: "RS", Database: "GCF", ID: "000005845", Record: 2},
		},
		{
			name:  "bare form without prefix",
			token: "GCA_000195005.1",
			want:  Accession{Database: "GCA", ID: "000195005", Record: 1},
		},
		{
			name:  "multi digit record",
			token: "GB_GCA_000195005.12",
			want:  Accession{Prefix: "GB", Database: "GCA", ID: "000195005", Record: 12},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tokens := []string{
		"",
		"GB_GCX_000195005.1",     // unknown database
		"GB_GCA_12A045005.1",     // non-numeric ID
		"GB_GCA_12345.1",         // short ID
		"GB_GCA_0001950050.1",    // long ID
		"GB_GCA_000195005",       // missing record
		"GB_GCA_000195005.",      // empty record
		"GB_GCA_000195005.0",     // record below 1
		"XX_GCA_000195005.1",     // unknown prefix
		"GB_GCA_000195005.1_ASM", // trailing label
		"gb_gca_000195005.1",     // lowercase
	}

	for _, token := range tokens {
		t.Run(token, func(t *testing.T) {
			_, err := Parse(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))

			var me *MalformedAccessionError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, token, me.Token)
		})
	}
}

func TestAccession_IDParts(t *testing.T) {
	a := MustParse("GB_GCA_000195005.1")

	p1, p2, p3 := a.IDParts()
	assert.Equal(t, "000", p1)
	assert.Equal(t, "195", p2)
	assert.Equal(t, "005", p3)
}

func TestAccession_IDParts_IndependentOfRecord(t *testing.T) {
	for _, token := range []string{"GB_GCA_000195005.1", "GB_GCA_000195005.7", "GB_GCA_000195005.42"} {
		a := MustParse(token)
		p1, p2, p3 := a.IDParts()
		assert.Equal(t, "000", p1)
		assert.Equal(t, "195", p2)
		assert.Equal(t, "005", p3)
	}
}

func TestAccession_Key(t *testing.T) {
	assert.Equal(t, "GCA_000195005.1", MustParse("GB_GCA_000195005.1").Key())
	assert.Equal(t, "GCF_000005845.2", MustParse("GCF_000005845.2").Key())
}

func TestAccession_String(t *testing.T) {
	assert.Equal(t, "GB_GCA_000195005.1", MustParse("GB_GCA_000195005.1").String())
	assert.Equal(t, "GCA_000195005.1", MustParse("GCA_000195005.1").String())
}

func TestParseList(t *testing.T) {
	input := strings.Join([]string{
		"# genomes batch 2024-06",
		"GB_GCA_000195005.1",
		"",
		"RS_GCF_000005845.2",
		"GB_GCA_000195005.1", // duplicate, dropped
		"not-an-accession",
		"GCA_000196035.1",
	}, "\n")

	accessions, malformed, err := ParseList(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, accessions, 3)
	assert.Equal(t, "GCA_000195005.1", accessions[0].Key())
	assert.Equal(t, "GCF_000005845.2", accessions[1].Key())
	assert.Equal(t, "GCA_000196035.1", accessions[2].Key())

	require.Len(t, malformed, 1)
	assert.Equal(t, "not-an-accession", malformed[0].Token)
}

func TestParseList_Empty(t *testing.T) {
	accessions, malformed, err := ParseList(strings.NewReader("\n\n# only comments\n"))
	require.NoError(t, err)
	assert.Empty(t, accessions)
	assert.Empty(t, malformed)
}

package codec

import (
	"testing"
)

type benchResource struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
	Hash  string `json:"hash"`
}

type benchDescriptor struct {
	Profile   string            `json:"profile"`
	Name      string            `json:"name"`
	Title     string            `json:"title"`
	Keywords  []string          `json:"keywords"`
	Extra     map[string]string `json:"extra"`
	Resources []benchResource   `json:"resources"`
}

func benchmarkCodecMarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	warm, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(warm)))

	var sink []byte
	b.ResetTimer()
	for b.Loop() {
		out, err := c.Marshal(v)
		if err != nil {
			b.Fatal(err)
		}
		sink = out
	}
	_ = sink
}

func benchmarkCodecUnmarshal[T any](b *testing.B, c Codec, data []byte, dst *T) {
	b.Helper()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	var v T
	b.ResetTimer()
	for b.Loop() {
		if err := c.Unmarshal(data, &v); err != nil {
			b.Fatal(err)
		}
	}
	if dst != nil {
		*dst = v
	}
}

func benchPayload() benchDescriptor {
	return benchDescriptor{
		Profile:  "tabular-data-package",
		Name:     "gca-000195005-1-asm19500v1",
		Title:    "NCBI genome assembly GCA_000195005.1",
		Keywords: []string{"ncbi", "genome", "assembly", "gca"},
		Extra: map[string]string{
			"database": "GCA",
			"record":   "GCA_000195005.1_ASM19500v1",
			"source":   "genomes/all/GCA/000/195/005",
		},
		Resources: []benchResource{
			{Name: "genomic-fna", Path: "GCA_000195005.1_ASM19500v1_genomic.fna.gz", Bytes: 1 << 20, Hash: "1b2cf4cb860adf9bdd79ae4b2ab26a51"},
			{Name: "genomic-gff", Path: "GCA_000195005.1_ASM19500v1_genomic.gff.gz", Bytes: 1 << 18, Hash: "8b5ae2f37c004c6eb9a8d0bb2bb6d957"},
			{Name: "assembly-report", Path: "GCA_000195005.1_ASM19500v1_assembly_report.txt", Bytes: 4096, Hash: "f2f20d7f0d5b9cbd0b74e7f13d761ef3"},
		},
	}
}

func BenchmarkCodec_Marshal_Descriptor(b *testing.B) {
	payload := benchPayload()

	b.Run("stdlib", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, payload) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecMarshal(b, GoJSON{}, payload) })
}

func BenchmarkCodec_Unmarshal_Descriptor(b *testing.B) {
	jsonData := MustMarshal(JSON{}, benchPayload())

	b.Run("stdlib", func(b *testing.B) {
		var sink benchDescriptor
		benchmarkCodecUnmarshal(b, JSON{}, jsonData, &sink)
		_ = sink
	})
	b.Run("go-json", func(b *testing.B) {
		var sink benchDescriptor
		benchmarkCodecUnmarshal(b, GoJSON{}, jsonData, &sink)
		_ = sink
	})
}

func BenchmarkCodec_Marshal_Row(b *testing.B) {
	// Shaped like one workbook row turned into a record document.
	row := map[string]string{
		"genome_id":        "3300000865_10",
		"IMG_TAXON_ID":     "3300000865",
		"ecosystem":        "Environmental",
		"ecosystem_type":   "Aquatic",
		"completeness":     "93.2",
		"contamination":    "1.1",
		"genome_size":      "2945041",
		"gene_count":       "2876",
		"scaffold_count":   "122",
		"gc_content":       "0.41",
		"n50_scaffold_bp":  "45876",
		"mimag_quality":    "MQ",
		"assembly_method":  "metaSPAdes",
		"binning_software": "MetaBAT",
	}

	b.Run("stdlib", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, row) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecMarshal(b, GoJSON{}, row) })
}

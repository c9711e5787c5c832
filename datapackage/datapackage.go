// Package datapackage generates frictionless data-package descriptors for
// published records.
//
// After a record's files land in the object store, a datapackage.json goes
// into the same record directory describing what arrived: one resource entry
// per file, provenance pointing at the NCBI Genomes FTP, and the NCBI
// Datasets citation. Consumers on the lake side discover record contents
// from the descriptor instead of listing keys.
package datapackage

import (
	"strconv"
	"strings"
	"time"

	"github.com/kbase/cdm-transfers/codec"
	"github.com/kbase/cdm-transfers/genomes"
	"github.com/kbase/cdm-transfers/staging"
)

// FileName is the descriptor's name inside the record directory.
const FileName = "datapackage.json"

// now is swapped out in tests.
var now = time.Now

// Resource describes one published file.
type Resource struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Format string `json:"format"`
	Bytes  int64  `json:"bytes"`
	// Hash is the verified MD5 digest, or null when the archive offered no
	// checksum for the file.
	Hash *string `json:"hash"`
}

// Source names where the data came from.
type Source struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Contributor credits an upstream party.
type Contributor struct {
	Title        string `json:"title"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
}

// Citation is a bibliographic reference for the dataset.
type Citation struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Journal string `json:"journal"`
	Year    string `json:"year"`
	Volume  string `json:"volume"`
	Issue   string `json:"issue"`
	Pages   string `json:"pages"`
	DOI     string `json:"doi"`
	PMID    string `json:"pmid"`
	PMCID   string `json:"pmcid"`
}

// License is a license entry. NCBI assemblies carry none, so the list is
// published empty.
type License struct {
	Name  string `json:"name,omitempty"`
	Path  string `json:"path,omitempty"`
	Title string `json:"title,omitempty"`
}

// Descriptor is a frictionless tabular-data-package document.
type Descriptor struct {
	Profile      string        `json:"profile"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Homepage     string        `json:"homepage"`
	Version      string        `json:"version"`
	Created      string        `json:"created"`
	Licenses     []License     `json:"licenses"`
	Sources      []Source      `json:"sources"`
	Contributors []Contributor `json:"contributors"`
	Citations    []Citation    `json:"citations"`
	Resources    []Resource    `json:"resources"`
}

// New builds the descriptor for a resolved record and its committed files.
// Resource order follows the input order.
func New(res genomes.Resolution, files []staging.StagedFile) *Descriptor {
	resources := make([]Resource, 0, len(files))
	for _, f := range files {
		resources = append(resources, resourceFor(f))
	}

	key := res.Accession.Key()

	return &Descriptor{
		Profile:     "tabular-data-package",
		Name:        packageName(res.RecordDir),
		Title:       "NCBI Genome Assembly " + res.RecordDir,
		Description: "Genome assembly files for " + key + " downloaded from NCBI Datasets",
		Homepage:    "https://www.ncbi.nlm.nih.gov/datasets/genome/" + key + "/",
		Version:     strconv.Itoa(res.Accession.Record),
		Created:     now().Format(time.RFC3339),
		Licenses:    []License{},
		Sources: []Source{
			{
				Title: "NCBI Genomes FTP",
				Path:  "ftp.ncbi.nlm.nih.gov/genomes/all/",
			},
		},
		Contributors: []Contributor{
			{
				Title:        "NCBI Datasets Team",
				Role:         "author",
				Organization: "National Center for Biotechnology Information",
			},
		},
		Citations: []Citation{
			{
				Title:   "Exploring and retrieving sequence and metadata for species across the tree of life with NCBI Datasets",
				Authors: "O'Leary NA, Cox E, Holmes JB, Anderson WR, Falk R, Hem V, Tsuchiya MTN, Schuler GD, Zhang X, Torcivia J, Ketter A, Breen L, Cothran J, Bajwa H, Tinne J, Meric PA, Hlavina W, Schneider VA",
				Journal: "Sci Data",
				Year:    "2024",
				Volume:  "11",
				Issue:   "1",
				Pages:   "732",
				DOI:     "10.1038/s41597-024-03571-y",
				PMID:    "38969627",
				PMCID:   "PMC11226681",
			},
		},
		Resources: resources,
	}
}

// Encode renders the descriptor as indented JSON.
func (d *Descriptor) Encode(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}

	return c.MarshalIndent(d, "", "  ")
}

func resourceFor(f staging.StagedFile) Resource {
	r := Resource{
		Name:   f.Name,
		Path:   f.Name,
		Format: formatOf(f.Name),
		Bytes:  f.Size,
	}

	if f.Verified {
		digest := f.MD5
		r.Hash = &digest
	}

	return r
}

// packageName turns a record directory into a frictionless package name,
// which allows only lowercase alphanumerics and dashes.
func packageName(recordDir string) string {
	name := strings.ToLower(recordDir)
	name = strings.ReplaceAll(name, ".", "-")
	name = strings.ReplaceAll(name, "_", "-")

	return name
}

func formatOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return "unknown"
	}

	return name[i+1:]
}

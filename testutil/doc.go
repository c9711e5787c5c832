// Package testutil provides testing utilities for the transfer pipeline.
//
// This package is intended for use in tests and benchmarks only.
// It provides builders for synthetic assembly records, rendering of
// checksum manifests in the archive's md5checksums.txt format, and
// small digest and compression helpers.
//
// # Record Fixtures
//
//	rec := testutil.NewRecord(t, "GB_GCA_000195005.1", "ASM19500v1")
//	rec.Seed(t, arc, true)       // archive now serves the record
//	names := rec.SelectedNames() // what a transfer should pick up
//
// # Checksum Manifests
//
//	data := rec.Manifest() // covers every file in the record directory
package testutil

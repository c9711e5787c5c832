package integration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	transfers "github.com/kbase/cdm-transfers"
	"github.com/kbase/cdm-transfers/accession"
	"github.com/kbase/cdm-transfers/archive"
	"github.com/kbase/cdm-transfers/objectstore"
	"github.com/kbase/cdm-transfers/testutil"
)

func TestE2E_Rerun(t *testing.T) {
	ctx := context.Background()

	arc := archive.NewMemoryArchive()
	store := objectstore.NewMemoryStore()

	rec := testutil.NewRecord(t, "GB_GCA_000195005.1", "ASM19500v1")
	rec.Seed(t, arc, true)

	accs := []accession.Accession{accession.MustParse("GB_GCA_000195005.1")}

	// 1. Transfer
	pipe, err := transfers.New(arc, store, transfers.WithLogger(transfers.NoopLogger()))
	require.NoError(t, err)

	report, err := pipe.Run(ctx, accs)
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded())

	objects, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, len(rec.Files)+2) // manifest and descriptor ride along

	// 2. Rebuild and Verify
	// The pipeline itself holds no durable state; the store does. A fresh
	// pipeline over the same store must converge without uploading.
	pipe, err = transfers.New(arc, store, transfers.WithLogger(transfers.NoopLogger()))
	require.NoError(t, err)

	report, err = pipe.Run(ctx, accs)
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded())

	res := report.Results()[0]
	require.NoError(t, res.Err)
	for _, outcome := range res.Files {
		require.Equal(t, "already-present", outcome.Status)
	}

	for _, obj := range objects {
		require.Equal(t, 1, store.Puts(obj.Key), "object %s was re-uploaded", obj.Key)
	}
}

func TestE2E_Recovery(t *testing.T) {
	ctx := context.Background()

	arc := archive.NewMemoryArchive()
	store := objectstore.NewMemoryStore()

	rec := testutil.NewRecord(t, "GB_GCA_000195005.1", "ASM19500v1")
	rec.Seed(t, arc, true)

	accs := []accession.Accession{accession.MustParse("GB_GCA_000195005.1")}
	names := rec.SelectedNames()
	brokenKey := rec.ObjectDir(transfers.DefaultBasePrefix) + "/" + names[1]

	// 1. Transfer with one upload failing
	store.FailPut(brokenKey, errors.New("connection reset"))

	pipe, err := transfers.New(arc, store, transfers.WithLogger(transfers.NoopLogger()))
	require.NoError(t, err)

	report, err := pipe.Run(ctx, accs)
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded(), "one failed upload must not fail the accession")

	res := report.Results()[0]
	require.NoError(t, res.Err)
	require.Equal(t, "failed", res.Files[1].Status)

	_, ok := store.Data(brokenKey)
	require.False(t, ok)

	// 2. Heal the store and rerun
	store.FailPut(brokenKey, nil)

	pipe, err = transfers.New(arc, store, transfers.WithLogger(transfers.NoopLogger()))
	require.NoError(t, err)

	report, err = pipe.Run(ctx, accs)
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded())

	res = report.Results()[0]
	require.NoError(t, res.Err)
	require.Equal(t, "committed", res.Files[1].Status)
	require.Equal(t, "already-present", res.Files[0].Status)
	require.Equal(t, "already-present", res.Files[2].Status)

	// 3. Verify only the missing object moved
	got, ok := store.Data(brokenKey)
	require.True(t, ok)
	require.Equal(t, rec.Files[names[1]], got)
	require.Equal(t, 2, store.Puts(brokenKey), "one failed attempt plus the heal")

	base := rec.ObjectDir(transfers.DefaultBasePrefix)
	require.Equal(t, 1, store.Puts(base+"/"+names[0]))
	require.Equal(t, 1, store.Puts(base+"/"+names[2]))
}

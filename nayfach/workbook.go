package nayfach

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cavaliergopher/grab/v3"
)

// WorkbookURL is the supplementary data workbook of Nayfach et al. 2020,
// "A genomic catalog of Earth's microbiomes", Nat Biotechnol 39, 499-509.
const WorkbookURL = "https://static-content.springer.com/esm/art%3A10.1038%2Fs41587-020-0718-6/MediaObjects/41587_2020_718_MOESM3_ESM.xlsx"

// WorkbookFileName is the workbook's name on disk.
const WorkbookFileName = "41587_2020_718_MOESM3_ESM.xlsx"

// FetchWorkbook downloads the workbook at url into dir and returns the
// local path. A workbook already on disk is reused unless force is set.
func FetchWorkbook(ctx context.Context, url, dir string, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workbook dir: %w", err)
	}

	dst := filepath.Join(dir, WorkbookFileName)

	if !force {
		if _, err := os.Stat(dst); err == nil {
			return dst, nil
		}
	}

	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return "", fmt.Errorf("fetch workbook: %w", err)
	}
	req = req.WithContext(ctx)
	req.NoResume = force

	resp := grab.NewClient().Do(req)
	if err := resp.Err(); err != nil {
		// A partial download must not satisfy the next run's exists
		// check.
		_ = os.Remove(dst)
		return "", fmt.Errorf("fetch workbook: %w", err)
	}

	return resp.Filename, nil
}

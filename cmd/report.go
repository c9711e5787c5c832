package cmd

import (
	"os"
	"time"

	"github.com/pkg/errors"

	transfers "github.com/kbase/cdm-transfers"
	"github.com/kbase/cdm-transfers/codec"
)

// reportView is the JSON shape written by --report. Errors are flattened to
// strings so the file stands alone without the process that produced it.
type reportView struct {
	RunID     string       `json:"run_id"`
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []resultView `json:"results"`
}

type resultView struct {
	Token         string     `json:"token"`
	Stage         string     `json:"stage"`
	RecordDir     string     `json:"record_dir,omitempty"`
	ManifestKey   string     `json:"manifest_key,omitempty"`
	DescriptorKey string     `json:"descriptor_key,omitempty"`
	Error         string     `json:"error,omitempty"`
	ElapsedMS     int64      `json:"elapsed_ms"`
	Files         []fileView `json:"files,omitempty"`
}

type fileView struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	Status   string `json:"status"`
	Bytes    int64  `json:"bytes,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

func viewOf(report *transfers.Report) reportView {
	results := report.Results()

	view := reportView{
		RunID:     report.RunID.String(),
		Started:   report.Started,
		Finished:  report.Finished,
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
		Results:   make([]resultView, 0, len(results)),
	}

	for _, res := range results {
		rv := resultView{
			Token:         res.Token,
			Stage:         res.Stage.String(),
			RecordDir:     res.RecordDir,
			ManifestKey:   res.ManifestKey,
			DescriptorKey: res.DescriptorKey,
			ElapsedMS:     res.Elapsed.Milliseconds(),
		}
		if res.Err != nil {
			rv.Error = res.Err.Error()
		}

		for _, f := range res.Files {
			fv := fileView{
				Name:     f.Name,
				Key:      f.Key,
				Status:   f.Status,
				Bytes:    f.Bytes,
				Attempts: f.Attempts,
			}
			if f.Err != nil {
				fv.Error = f.Err.Error()
			}
			rv.Files = append(rv.Files, fv)
		}

		view.Results = append(view.Results, rv)
	}

	return view
}

func writeReport(path string, report *transfers.Report) error {
	data, err := codec.Default.MarshalIndent(viewOf(report), "", "  ")
	if err != nil {
		return errors.Wrap(err, "couldn't encode the batch report")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "couldn't write the batch report to: %s", path)
	}
	return nil
}

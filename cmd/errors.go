package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	transfers "github.com/kbase/cdm-transfers"
)

// prettyPrintError translates the errors operators hit most into guidance.
// Everything else is printed as-is.
func prettyPrintError(err error) {
	switch {
	case errors.Is(err, transfers.ErrStoreUnavailable):
		fmt.Fprintf(os.Stderr, "Object store unreachable: %v\n", err)
		fmt.Fprintln(os.Stderr, "Check the endpoint and credentials. They come from the --endpoint, --access-key, and --secret-key flags, or the MINIO_ENDPOINT_URL, MINIO_ACCESS_KEY, and MINIO_SECRET_KEY environment variables.")

	case strings.Contains(err.Error(), "couldn't open accession list file"):
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Fprintln(os.Stderr, "The genomes command needs a readable accession list, one accession per line. Pass \"-\" to read from stdin.")

	case strings.Contains(err.Error(), "no workbook at"):
		fmt.Fprintf(os.Stderr, "%v\n", err)

	default:
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
}

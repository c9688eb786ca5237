package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/rfq-tracker/internal/app"
	"github.com/joseph-ayodele/rfq-tracker/internal/async"
	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/ingest"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract a document from a PDF or image",
	Long:  `Sends the file to the configured model, normalizes the answer, records the job and prints the document.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Extract every PDF and image below a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

var (
	batchWorkers int
	batchTimeout time.Duration
)

func init() {
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 2, "concurrent extractions")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 3*time.Minute, "timeout per file")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(batchCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd, app.Options{Database: true, Extractor: true, Store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Service.ExtractFile(cmd.Context(), args[0], variant, tenant)
	if out != nil {
		printWarnings(cmd, out.Warnings)
		if len(out.Result.Violations) > 0 {
			printViolations(cmd, out.Result)
		}
	}
	if err != nil {
		return err
	}
	color.New(color.FgCyan).Fprintf(cmd.ErrOrStderr(), "job %s (model %s)\n", out.JobID, out.Model)
	return printJSON(cmd, out.Result.Document)
}

type batchTally struct {
	mu       sync.Mutex
	ok       int
	invalid  int
	failed   int
	failures []string
}

func (t *batchTally) record(job async.Job, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case err == nil:
		t.ok++
	case errors.Is(err, common.ErrValidation):
		t.invalid++
		t.failures = append(t.failures, fmt.Sprintf("%s: %v", job.Path, err))
	default:
		t.failed++
		t.failures = append(t.failures, fmt.Sprintf("%s: %v", job.Path, err))
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths, stats, err := ingest.Directory(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "no PDF or image files in %s (%d entries scanned)\n", args[0], stats.Scanned)
		return nil
	}

	a, err := buildApp(cmd, app.Options{Database: true, Extractor: true, Store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription(color.BlueString("extracting")),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	tally := &batchTally{}
	q := async.NewProcessorQueue(
		func(ctx context.Context, job async.Job) error {
			_, err := a.Service.ExtractFile(ctx, job.Path, job.Variant, job.Tenant)
			return err
		},
		newLogger(cmd),
		async.WithWorkers(batchWorkers),
		async.WithQueueSize(len(paths)),
		async.WithProcessTimeout(batchTimeout),
		async.WithResultHook(func(job async.Job, err error) {
			tally.record(job, err)
			_ = bar.Add(1)
		}),
	)
	for _, p := range paths {
		if err := q.Enqueue(cmd.Context(), async.Job{Path: p, Variant: variant, Tenant: tenant}); err != nil {
			return err
		}
	}
	q.Shutdown(cmd.Context())
	_ = bar.Finish()

	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	color.New(color.FgGreen).Fprintf(w, "extracted: %d\n", tally.ok)
	if tally.invalid > 0 {
		color.New(color.FgYellow).Fprintf(w, "invalid:   %d\n", tally.invalid)
	}
	if tally.failed > 0 {
		color.New(color.FgRed).Fprintf(w, "failed:    %d\n", tally.failed)
	}
	for _, f := range tally.failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", f)
	}
	if tally.ok == 0 {
		return fmt.Errorf("no file in %s could be extracted", args[0])
	}
	return nil
}

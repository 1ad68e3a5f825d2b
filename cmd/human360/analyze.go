package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chriskillpack/human360"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var analyzeOutput string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image_path>",
	Short: "Analyze one portrait and print the JSON report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		h, err := newHuman360(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		return runAnalyze(cmd.Context(), h, args[0], analyzeOutput, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write the JSON report to this file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(ctx context.Context, h *human360.Human360, path, output string, stdout, stderr io.Writer) error {
	img, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Analyzing portrait features..."),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSpinnerType(14),
		// spin drives rendering, so all writes stop once it returns
		progressbar.OptionSetSpinnerChangeInterval(0),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	stop := spin(bar)
	a, err := h.AnalyzePortrait(ctx, img)
	stop()

	if err != nil {
		var ae *human360.AnalysisError
		if errors.As(err, &ae) {
			fmt.Fprintln(stderr, "Analysis failed. Possible reasons:")
			for _, r := range ae.Reasons() {
				fmt.Fprintf(stderr, "  - %s\n", r)
			}
		}
		return err
	}

	doc, err := a.Export()
	if err != nil {
		return err
	}

	if output == "" {
		_, err = fmt.Fprintf(stdout, "%s\n", doc)
		return err
	}
	if err := os.WriteFile(output, doc, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Wrote %s (%d of %d attributes, confidence %s)\n",
		output, len(a.Report)-len(a.Report.Extra()), len(a.Validation), a.Confidence)
	return nil
}

// spin animates bar until the returned function is called.
func spin(bar *progressbar.ProgressBar) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				bar.Add(1)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		bar.Finish()
	}
}

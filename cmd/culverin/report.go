package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"culverin/internal/metrics"
	"culverin/internal/report"
	"culverin/internal/result"
)

var reportFlags struct {
	input  string
	output string
	typ    string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a binary result stream as text, JSON, a histogram, or an hdrplot table",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVarP(&reportFlags.input, "input", "i", "", "result stream input file (default: stdin)")
	f.StringVarP(&reportFlags.output, "output", "o", "", "output file (default: stdout)")
	f.StringVar(&reportFlags.typ, "type", "text", `report type: text, json, "hist[edge,edge,...]", or hdrplot`)
}

func runReport(cmd *cobra.Command, args []string) error {
	typ, edges, err := report.ParseType(reportFlags.typ)
	if err != nil {
		return withExitCode(exitArgsOrIO, err)
	}

	in, err := openInput(reportFlags.input)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening input: %w", err))
	}
	if in != os.Stdin {
		defer in.Close()
	}
	out, err := openOutput(reportFlags.output)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening output: %w", err))
	}
	if out != os.Stdout {
		defer out.Close()
	}

	agg := metrics.NewAggregator(nil)
	var buckets *metrics.BucketCounter
	if typ == report.TypeHist {
		buckets = metrics.NewBucketCounter(edges)
	}

	dec := result.NewDecoder(in)
	for {
		r, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return withExitCode(exitArgsOrIO, fmt.Errorf("decoding result stream: %w", err))
		}
		agg.Add(r)
		if buckets != nil {
			buckets.Add(r.Latency)
		}
	}

	switch typ {
	case report.TypeText:
		err = report.Text(out, agg.Snapshot())
	case report.TypeJSON:
		err = report.JSON(out, agg.Snapshot())
	case report.TypeHist:
		err = report.Hist(out, buckets)
	case report.TypeHDRPlot:
		err = report.HDRPlot(out, agg.Distribution())
	}
	if err != nil {
		return withExitCode(exitArgsOrIO, err)
	}
	return nil
}

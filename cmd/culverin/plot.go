package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"culverin/internal/plot"
	"culverin/internal/result"
)

var plotFlags struct {
	input     string
	output    string
	title     string
	threshold int
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render a binary result stream as a self-contained HTML latency plot",
	RunE:  runPlot,
}

func init() {
	f := plotCmd.Flags()
	f.StringVarP(&plotFlags.input, "input", "i", "", "result stream input file (default: stdin)")
	f.StringVarP(&plotFlags.output, "output", "o", "", "output HTML file (default: stdout)")
	f.StringVar(&plotFlags.title, "title", "culverin attack", "plot title")
	f.IntVar(&plotFlags.threshold, "threshold", 4000, "downsample above this many points; 0 disables downsampling")
}

func runPlot(cmd *cobra.Command, args []string) error {
	in, err := openInput(plotFlags.input)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening input: %w", err))
	}
	if in != os.Stdin {
		defer in.Close()
	}
	out, err := openOutput(plotFlags.output)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening output: %w", err))
	}
	if out != os.Stdout {
		defer out.Close()
	}

	series := plot.NewSeries()
	dec := result.NewDecoder(in)
	for {
		r, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return withExitCode(exitArgsOrIO, fmt.Errorf("decoding result stream: %w", err))
		}
		series.Add(r)
	}

	if err := plot.Render(out, plotFlags.title, series.Downsample(plotFlags.threshold)); err != nil {
		return withExitCode(exitArgsOrIO, err)
	}
	return nil
}

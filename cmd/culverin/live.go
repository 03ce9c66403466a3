package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"culverin/internal/attack"
	"culverin/internal/metrics"
	"culverin/internal/result"
)

var liveFlags struct {
	input string
	name  string
	speed time.Duration
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Replay a binary result stream through the terminal dashboard",
	RunE:  runLive,
}

func init() {
	f := liveCmd.Flags()
	f.StringVarP(&liveFlags.input, "input", "i", "", "result stream input file (default: stdin)")
	f.StringVar(&liveFlags.name, "name", "replay", "name shown on the dashboard")
	f.DurationVar(&liveFlags.speed, "delay", time.Millisecond, "pause between records while replaying")
}

func runLive(cmd *cobra.Command, args []string) error {
	in, err := openInput(liveFlags.input)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening input: %w", err))
	}
	if in != os.Stdin {
		defer in.Close()
	}

	agg := metrics.NewAggregator(nil)
	cfg := attack.Config{Name: liveFlags.name}
	dash := newDashboard(cfg, agg)
	go dash.run()

	dec := result.NewDecoder(in)
	for {
		r, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			dash.stop()
			return withExitCode(exitArgsOrIO, fmt.Errorf("decoding result stream: %w", err))
		}
		agg.Add(r)
		if liveFlags.speed > 0 {
			time.Sleep(liveFlags.speed)
		}
	}

	<-dash.done
	return nil
}

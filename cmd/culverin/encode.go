package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"culverin/internal/encode"
	"culverin/internal/result"
)

var encodeFlags struct {
	input  string
	output string
	to     string
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Convert a binary result stream to JSON-lines or CSV",
	RunE:  runEncode,
}

func init() {
	f := encodeCmd.Flags()
	f.StringVarP(&encodeFlags.input, "input", "i", "", "result stream input file (default: stdin)")
	f.StringVarP(&encodeFlags.output, "output", "o", "", "output file (default: stdout)")
	f.StringVar(&encodeFlags.to, "to", "json", "output format: json or csv")
}

func runEncode(cmd *cobra.Command, args []string) error {
	in, err := openInput(encodeFlags.input)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening input: %w", err))
	}
	if in != os.Stdin {
		defer in.Close()
	}
	out, err := openOutput(encodeFlags.output)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening output: %w", err))
	}
	if out != os.Stdout {
		defer out.Close()
	}

	dec := result.NewDecoder(in)

	var writeRecord func(*result.Result) error
	var flush func() error

	switch encodeFlags.to {
	case "json":
		enc := encode.NewJSONEncoder(out)
		writeRecord = enc.Encode
		flush = func() error { return nil }
	case "csv":
		enc := encode.NewCSVEncoder(out)
		writeRecord = enc.Encode
		flush = enc.Flush
	default:
		return withExitCode(exitArgsOrIO, fmt.Errorf("encode: unknown --to %q", encodeFlags.to))
	}

	for {
		r, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return withExitCode(exitArgsOrIO, fmt.Errorf("decoding result stream: %w", err))
		}
		if err := writeRecord(r); err != nil {
			return withExitCode(exitArgsOrIO, err)
		}
	}
	if err := flush(); err != nil {
		return withExitCode(exitArgsOrIO, err)
	}
	return nil
}

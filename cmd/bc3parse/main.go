// bc3parse is the out-of-process parse worker: BC3 bytes on stdin, one
// JSON result envelope on stdout, diagnostics on stderr. Exit status 0
// means success, 1 means the parse failed but was answered correctly;
// anything else is an infrastructure failure.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/obrasoft/bc3gest/internal/bc3"
	"github.com/obrasoft/bc3gest/internal/runner"
)

var rootCmd = &cobra.Command{
	Use:          "bc3parse",
	Short:        "Parse a BC3 (FIEBDC-3) budget file into a priced tree",
	Long:         `Reads a BC3 file from standard input and writes the resolved budget tree as JSON to standard output.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runParse,
}

func init() {
	rootCmd.Flags().String("encoding", "", "charset assumed when the file declares none (latin1, ansi, 850, 437, utf8)")
	rootCmd.Flags().Bool("pretty", false, "indent the JSON output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

func runParse(cmd *cobra.Command, args []string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	encoding, err := cmd.Flags().GetString("encoding")
	if err != nil {
		return fmt.Errorf("read encoding flag: %w", err)
	}
	pretty, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return fmt.Errorf("read pretty flag: %w", err)
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		writeEnvelope(runner.NewEnvelope(nil, fmt.Errorf("no BC3 content received on stdin")), pretty)
		os.Exit(1)
	}

	res, err := bc3.Parse(cmd.Context(), data, bc3.Options{Encoding: encoding})
	if err != nil {
		log.Error("parse failed", "error", err, "size_bytes", len(data))
		writeEnvelope(runner.NewEnvelope(nil, err), pretty)
		os.Exit(1)
	}

	for _, w := range res.Warnings {
		log.Warn(w)
	}
	writeEnvelope(runner.NewEnvelope(res.Tree, nil), pretty)
	return nil
}

// writeEnvelope emits exactly one JSON document on stdout; everything
// else this process prints goes to stderr.
func writeEnvelope(env runner.Envelope, pretty bool) {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(env); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(2)
	}
}

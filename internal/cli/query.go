package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"LedgerRouter/client"
	"LedgerRouter/internal/ledger"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "query [key-image-hex...]",
		Short: "Check whether key images are spent",
		Long: `Send key images to the router and print one result per key image.

Key images are given as arguments or read one per line from --file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyImages, err := collectKeyImages(args, file)
			if err != nil {
				return err
			}

			return runQuery(cmd, rootOpts, keyImages)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "file with one hex key image per line")

	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the router's shard set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client.NewClient(rootOpts.Router).Status(cmd.Context())
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), status)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "SHARD\tADDRESS\tCONNECTED\n")
			for _, s := range status.ShardList {
				fmt.Fprintf(w, "%s\t%s\t%v\n", s.ID, s.Address, s.Connected)
			}
			fmt.Fprintf(w, "\n%d/%d connected\n", status.Connected, status.Shards)

			return w.Flush()
		},
	}
}

func runQuery(cmd *cobra.Command, opts *RootOptions, keyImages []ledger.KeyImage) error {
	batch, err := client.NewClient(opts.Router).CheckKeyImages(cmd.Context(), keyImages)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), batchOutput(batch))
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "KEY IMAGE\tSTATUS\tSPENT AT\tTIMESTAMP\tTIMESTAMP STATUS\n")

	for _, r := range batch.Results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			r.KeyImage, r.KeyImageResultCode, r.SpentAt, r.Timestamp, r.TimestampResultCode)
	}

	fmt.Fprintf(w, "\nbatch %s\n", batch.ID)

	return w.Flush()
}

type resultOutput struct {
	KeyImage            string `json:"key_image"`
	SpentAt             uint64 `json:"spent_at"`
	Timestamp           uint64 `json:"timestamp"`
	TimestampResultCode string `json:"timestamp_result_code"`
	KeyImageResultCode  string `json:"key_image_result_code"`
}

type queryOutput struct {
	BatchID string         `json:"batch_id"`
	Results []resultOutput `json:"results"`
}

func batchOutput(batch *client.Batch) queryOutput {
	out := queryOutput{BatchID: batch.ID.String(), Results: make([]resultOutput, len(batch.Results))}

	for i, r := range batch.Results {
		out.Results[i] = resultOutput{
			KeyImage:            r.KeyImage.String(),
			SpentAt:             r.SpentAt,
			Timestamp:           r.Timestamp,
			TimestampResultCode: r.TimestampResultCode.String(),
			KeyImageResultCode:  r.KeyImageResultCode.String(),
		}
	}

	return out
}

// collectKeyImages parses key images from args and, if set, file.
func collectKeyImages(args []string, file string) ([]ledger.KeyImage, error) {
	hexes := append([]string(nil), args...)

	if file != "" {
		lines, err := readLines(file)
		if err != nil {
			return nil, err
		}

		hexes = append(hexes, lines...)
	}

	if len(hexes) == 0 {
		return nil, fmt.Errorf("no key images given")
	}

	keyImages := make([]ledger.KeyImage, len(hexes))

	for i, h := range hexes {
		ki, err := ledger.ParseKeyImage(h)
		if err != nil {
			return nil, fmt.Errorf("key image %q:\n%w", h, err)
		}

		keyImages[i] = ki
	}

	return keyImages, nil
}

// readLines returns the non-empty, non-comment lines of a file.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s:\n%w", path, err)
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s:\n%w", path, err)
	}

	return lines, nil
}

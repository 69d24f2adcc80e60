package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/shard"
	"LedgerRouter/internal/snapshot"
	"LedgerRouter/internal/storage"
)

// snapshotExt is the file extension of shard snapshots.
const snapshotExt = ".kisn"

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build, inspect and export shard snapshots",
	}

	cmd.AddCommand(newSnapshotBuildCommand(rootOpts))
	cmd.AddCommand(newSnapshotInspectCommand(rootOpts))
	cmd.AddCommand(newSnapshotExportCommand(rootOpts))

	return cmd
}

func newSnapshotBuildCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		out    string
		shards []string
	)

	cmd := &cobra.Command{
		Use:   "build <records-file>",
		Short: "Build snapshots from a spent-records file",
		Long: `Build snapshots from a text file of spent records, one per line:

    <key-image-hex> <spent-at> <timestamp>

Without --shards a single snapshot is written to --out. With --shards the
records are split by rendezvous placement and one <shard-id>.kisn file per
shard is written into the --out directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readRecords(args[0])
			if err != nil {
				return err
			}

			if len(shards) == 0 {
				if err := snapshot.WriteFile(out, recs); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(recs), out)
				return nil
			}

			return writeShardSnapshots(cmd, out, shards, recs)
		},
	}

	cmd.Flags().StringVar(&out, "out", "snapshot"+snapshotExt, "output file, or directory with --shards")
	cmd.Flags().StringSliceVar(&shards, "shards", nil, "shard ids to split the records across")

	return cmd
}

func newSnapshotInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <snapshot-file>",
		Short: "Verify a snapshot and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}

			summary := struct {
				Records int    `json:"records"`
				First   string `json:"first,omitempty"`
				Last    string `json:"last,omitempty"`
			}{Records: len(recs)}

			if len(recs) > 0 {
				summary.First = recs[0].KeyImage.String()
				summary.Last = recs[len(recs)-1].KeyImage.String()
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "records: %d\n", summary.Records)
			if summary.Records > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "first:   %s\nlast:    %s\n", summary.First, summary.Last)
			}

			return nil
		},
	}
}

func newSnapshotExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <data-dir>",
		Short: "Export a stopped shard's storage to a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.New(args[0])
			if err != nil {
				return fmt.Errorf("open storage:\n%w", err)
			}
			defer db.Close()

			count, err := db.Count()
			if err != nil {
				return fmt.Errorf("count records:\n%w", err)
			}

			data, err := snapshot.Export(db)
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("write %s:\n%w", out, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s (%d bytes)\n", count, out, len(data))

			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "snapshot"+snapshotExt, "output file")

	return cmd
}

// writeShardSnapshots partitions recs across shards and writes one
// snapshot per shard, including empty ones.
func writeShardSnapshots(cmd *cobra.Command, dir string, shards []string, recs []ledger.SpentRecord) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s:\n%w", dir, err)
	}

	parts := shard.NewPlacement(shards).Partition(recs)

	ids := append([]string(nil), shards...)
	sort.Strings(ids)

	for _, id := range ids {
		path := filepath.Join(dir, id+snapshotExt)

		if err := snapshot.WriteFile(path, parts[id]); err != nil {
			return fmt.Errorf("write %s:\n%w", path, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records -> %s\n", id, len(parts[id]), path)
	}

	return nil
}

// readRecords parses a spent-records file.
func readRecords(path string) ([]ledger.SpentRecord, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	recs := make([]ledger.SpentRecord, 0, len(lines))

	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("record %d: want 3 fields, got %d", i+1, len(fields))
		}

		ki, err := ledger.ParseKeyImage(fields[0])
		if err != nil {
			return nil, fmt.Errorf("record %d:\n%w", i+1, err)
		}

		spentAt, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("record %d: spent_at:\n%w", i+1, err)
		}

		timestamp, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("record %d: timestamp:\n%w", i+1, err)
		}

		recs = append(recs, ledger.SpentRecord{KeyImage: ki, SpentAt: spentAt, Timestamp: timestamp})
	}

	return recs, nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"meridian/internal/citations"
	"meridian/internal/stage"
	"meridian/internal/summary"
	"meridian/pkg/reserr"
)

var summariesFrom string

var summariesCmd = &cobra.Command{
	Use:   "summaries",
	Short: "Build the bounded summary pack",
	Long: `Stage each draft summary from --from (one <perspective_id>.md per
perspective), check every size and citation rule, and only then commit
the files and summary-pack.json. A failed check leaves the summaries
directory untouched.`,
	RunE: runSummaries,
}

func runSummaries(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}
	if summariesFrom == "" {
		return reserr.New(reserr.CodeInvalidArgs, "--from directory is required")
	}

	manifest, merr := stage.New(layout, runID).ReadManifest()
	if merr != nil {
		return merr
	}
	records, rerr := citations.ReadRecords(layout.Citations())
	if rerr != nil {
		return rerr
	}

	builder := &summary.Builder{
		Layout:     layout,
		RunID:      runID,
		FileCapKB:  manifest.Limits.SummaryFileKB,
		TotalCapKB: manifest.Limits.SummaryTotalKB,
		ValidCIDs:  citations.ValidatedCIDs(records),
	}

	entries, derr := os.ReadDir(summariesFrom)
	if derr != nil {
		return reserr.Wrap(reserr.CodeNotFound, "read drafts directory", derr)
	}
	staged := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, ferr := os.ReadFile(filepath.Join(summariesFrom, entry.Name()))
		if ferr != nil {
			return reserr.Wrap(reserr.CodeWriteFailed, "read draft summary", ferr)
		}
		id := strings.TrimSuffix(entry.Name(), ".md")
		if aerr := builder.Add(id, content); aerr != nil {
			return aerr
		}
		staged++
	}
	if staged == 0 {
		return reserr.Newf(reserr.CodeInvalidArgs, "no .md drafts under %s", summariesFrom)
	}

	pack, cerr := builder.Commit()
	if cerr != nil {
		return cerr
	}
	return emit(pack, func() {
		fmt.Printf("committed %d summaries, %d bytes total\n", len(pack.Entries), pack.TotalBytes)
	})
}

func init() {
	summariesCmd.Flags().StringVar(&summariesFrom, "from", "", "Directory of draft summaries")
}

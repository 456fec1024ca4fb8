package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meridian/internal/citations"
	"meridian/internal/stage"
	"meridian/internal/wave"
	"meridian/pkg/models"
)

var (
	citFixturesPath string
	citIncludeWave2 bool
)

var citationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "Extract, normalize and validate citation URLs",
	Long: `Run the citation pipeline: scan wave outputs' Sources sections,
normalize and deduplicate the URLs, validate each distinct URL and
write the citations artifacts.

With the offline flag set in configuration, --fixtures supplies the
per-URL validation outcomes; otherwise the online classification stub
runs.`,
	RunE: runCitations,
}

func runCitations(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}
	doc, rerr := wave.ReadPerspectives(layout)
	if rerr != nil {
		return rerr
	}
	manifest, merr := stage.New(layout, runID).ReadManifest()
	if merr != nil {
		return merr
	}

	candidates, eerr := citations.Extract(layout, doc.Perspectives, citIncludeWave2)
	if eerr != nil {
		return eerr
	}

	pipeline := &citations.Pipeline{
		Layout:         layout,
		RunID:          runID,
		Offline:        cfg.Offline,
		Tier:           cfg.CitationTier,
		StripAllParams: manifest.Sensitivity == models.SensitivityRestricted,
	}
	if cfg.Offline {
		if citFixturesPath == "" {
			fmt.Println("offline mode with no fixtures: every URL will classify invalid")
		} else {
			fixtures, ferr := citations.LoadFixtures(citFixturesPath)
			if ferr != nil {
				return ferr
			}
			pipeline.Fixtures = fixtures
		}
	}

	log := debugLogger(layout)
	defer log.Close()

	outcome, perr := pipeline.Run(candidates)
	if perr != nil {
		return perr
	}
	log.Log("citations: %d extracted, %d distinct", outcome.Extracted, outcome.Distinct)
	if werr := pipeline.WriteArtifacts(outcome); werr != nil {
		return werr
	}

	payload := map[string]any{
		"extracted": outcome.Extracted,
		"distinct":  outcome.Distinct,
	}
	return emit(payload, func() {
		fmt.Printf("%d URLs extracted, %d distinct after normalization\n",
			outcome.Extracted, outcome.Distinct)
		fmt.Printf("report: %s\n", layout.CitationReport())
	})
}

func init() {
	citationsCmd.Flags().StringVar(&citFixturesPath, "fixtures", "", "Offline validation fixtures (yaml)")
	citationsCmd.Flags().BoolVar(&citIncludeWave2, "include-wave2", false, "Also scan wave-2 outputs")
}

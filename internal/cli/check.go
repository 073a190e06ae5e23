package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pkgpulse/internal/registry"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one aggregation cycle and print the verdicts",
	Long: `Run one aggregation cycle and print the per-package verdicts.

Exit codes:
	0 = aggregation succeeded
	1 = aggregation failed (no data to show)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyEnvFallbacks(cmd)
		if err := applyNpmPrefixFlag(); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := newLogger()
		agg, err := buildAggregator(cmd.Context(), logger)
		if err != nil {
			return err
		}

		snap, err := agg.Registry(cmd.Context())
		if err != nil {
			return fmt.Errorf("aggregation failed: %s", snap.Error)
		}

		if checkJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		printVerdicts(cmd.OutOrStdout(), snap)
		return nil
	},
}

func printVerdicts(w io.Writer, snap *registry.CachedRegistry) {
	ids := make([]string, 0, len(snap.Registry))
	width := 0
	for id := range snap.Registry {
		ids = append(ids, id)
		if len(id) > width {
			width = len(id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		info := snap.Registry[id]
		fmt.Fprintf(w, "%-*s  v0 %s  v1 %s\n",
			width, id,
			supportMark(info.Supports.V0, majorDetail(info, 0)),
			supportMark(info.Supports.V1, majorDetail(info, 1)),
		)
	}
	fmt.Fprintf(w, "\n%d packages, updated %s\n", len(ids), snap.LastUpdatedAt.Format("2006-01-02 15:04:05 MST"))
}

func supportMark(supported bool, detail string) string {
	if !supported {
		return color.RedString("no ")
	}
	if detail != "" {
		return color.GreenString("yes") + " (" + detail + ")"
	}
	return color.GreenString("yes")
}

func majorDetail(info registry.VersionInfo, major int) string {
	if info.Git == nil {
		return ""
	}
	bv := info.Git.V0
	if major == 1 {
		bv = info.Git.V1
	}
	switch {
	case bv.Version != nil && bv.Branch != nil:
		return *bv.Version + " @ " + *bv.Branch
	case bv.Version != nil:
		return *bv.Version
	case bv.Branch != nil:
		return "@ " + *bv.Branch
	}
	return ""
}

func init() {
	registerPipelineFlags(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the raw snapshot as JSON")
	rootCmd.AddCommand(checkCmd)
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"filehash/internal/domain"
	"filehash/internal/usecase"
)

var (
	diffFrom string
	diffTo   string
	diffJSON bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare recorded builds",
	Long: `Compare the logical names of two recorded builds: names added, removed, or
now pointing at a different hashed file. Without flags the last two builds are
compared.

Examples:
  filehash diff
  filehash diff --from 20260101T120000.000000000Z --to 20260102T120000.000000000Z --json`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVar(&diffFrom, "from", "", "older snapshot ID")
	diffCmd.Flags().StringVar(&diffTo, "to", "", "newer snapshot ID")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "output as JSON")
	diffCmd.MarkFlagsRequiredTogether("from", "to")
}

func runDiff(cmd *cobra.Command, args []string) error {
	st, err := openState(GetRootDir(), GetConfig(), false)
	if err != nil {
		return err
	}
	defer st.Close()

	diffUC := usecase.NewDiffUseCase(st)

	var diff domain.SnapshotDiff
	if diffFrom != "" {
		diff, err = diffUC.Between(diffFrom, diffTo)
	} else {
		diff, err = diffUC.Latest()
	}
	if errors.Is(err, usecase.ErrNoHistory) {
		fmt.Println("Fewer than two builds recorded; nothing to compare.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	if diffJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}

	fmt.Printf("%s -> %s\n", diff.From, diff.To)
	if diff.Empty() {
		fmt.Println("  No changes.")
		return nil
	}
	for _, name := range diff.Added {
		fmt.Printf("  + %s\n", name)
	}
	for _, name := range diff.Removed {
		fmt.Printf("  - %s\n", name)
	}
	for _, r := range diff.Rehashed {
		fmt.Printf("  ~ %s: %s -> %s\n", r.Name, r.Old, r.New)
	}
	return nil
}

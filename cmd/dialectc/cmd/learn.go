package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/dialectc/internal/index"
	"github.com/solatis/dialectc/internal/translate"
	"github.com/solatis/dialectc/internal/types"
)

var learnCmd = &cobra.Command{
	Use:   "learn <corpus-dir>",
	Short: "Mine a source corpus for new rules with the oracle",
	Args:  cobra.ExactArgs(1),
	RunE:  runLearn,
}

func init() {
	rootCmd.AddCommand(learnCmd)
	learnCmd.Flags().StringSlice("ext", []string{".sql", ".pls", ".pck", ".pkb"}, "file extensions to scan (empty scans every file)")
}

func runLearn(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	o, err := newOracle(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("learn needs an oracle: %w", types.ErrNoOracle)
	}

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	exts, _ := cmd.Flags().GetStringSlice("ext")
	for i, e := range exts {
		if e = strings.TrimSpace(e); e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[i] = e
	}

	learner := translate.NewLearner(o, repo, index.New(), st.journal, logger)
	stats, err := learner.LearnDir(cmd.Context(), args[0], exts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, learned from %d, skipped %d, failed %d, rules %d\n",
		stats.Scanned, stats.Matched, stats.Skipped, stats.Failed, stats.Rules)
	return nil
}

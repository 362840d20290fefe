package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/seed"
	"github.com/solatis/dialectc/internal/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and edit the rule store",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print rules as JSONL",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Merge JSONL rules into the store",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesImport,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file|->",
	Short: "Check that every line of a JSONL file is a usable rule",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesValidate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Merge a grammar manifest (default: built-in) into the rule store",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(rulesCmd, seedCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesImportCmd, rulesValidateCmd)

	rulesListCmd.Flags().String("kind", "", "only list rules of this kind (segment, stmt, block, rewrite)")
	seedCmd.Flags().String("manifest", "", "YAML manifest file (default: built-in grammar)")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := rules.OpenRepository(cfg.Rules.Dir, rules.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open rules: %w", err)
	}

	kind, _ := cmd.Flags().GetString("kind")
	var list []types.Rule
	if kind == "" {
		list = repo.All()
	} else {
		list = repo.OfKind(types.RuleKind(strings.ToLower(kind)))
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	enc := json.NewEncoder(w)
	for _, r := range list {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := rules.OpenRepository(cfg.Rules.Dir, rules.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open rules: %w", err)
	}

	learned := rules.CoerceJSONL(raw)
	if len(learned) == 0 {
		return fmt.Errorf("no usable rules in input")
	}
	if err := repo.MergeAndSave(learned); err != nil {
		return err
	}

	logger.Info("rules imported", zap.Int("imported", len(learned)), zap.Int("total", repo.Len()))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d rules (%d total)\n", len(learned), repo.Len())
	return nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	var valid, invalid int
	for i, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, ok := rules.CoerceLine(line); ok {
			valid++
			continue
		}
		invalid++
		fmt.Fprintf(cmd.ErrOrStderr(), "line %d: not a usable rule\n", i+1)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d valid, %d invalid\n", valid, invalid)
	if invalid > 0 {
		return fmt.Errorf("%d invalid rule lines", invalid)
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m := seed.Default()
	if path, _ := cmd.Flags().GetString("manifest"); path != "" {
		if m, err = seed.LoadFile(path); err != nil {
			return err
		}
	}

	repo, err := rules.OpenRepository(cfg.Rules.Dir, rules.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open rules: %w", err)
	}
	n, errs := seed.Apply(repo, m)
	for _, e := range errs {
		logger.Warn("manifest entry rejected", zap.Error(e))
	}
	if n == 0 {
		return fmt.Errorf("manifest produced no usable rules")
	}
	if err := repo.Save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rules into %s (%d total)\n", n, repo.Path(), repo.Len())
	if len(errs) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d manifest entries rejected\n", len(errs))
	}
	return nil
}

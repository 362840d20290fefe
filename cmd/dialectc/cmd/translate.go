package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [file|-]",
	Short: "Translate a source file to Java",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTranslate,
}

var fixCmd = &cobra.Command{
	Use:   "fix <source-file>",
	Short: "Apply reviewer feedback to a translation and learn from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runFix,
}

var tokensCmd = &cobra.Command{
	Use:   "tokens [file|-]",
	Short: "Print the statement tokens the segmenter produces",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokens,
}

func init() {
	rootCmd.AddCommand(translateCmd, fixCmd, tokensCmd)

	translateCmd.Flags().String("unit", "", "generated class name (default from config)")
	translateCmd.Flags().StringP("out", "o", "", "write Java to this file instead of stdout")
	translateCmd.Flags().Bool("no-verify", false, "skip javac verification")
	translateCmd.Flags().Bool("no-journal", false, "do not record the run in the journal")

	fixCmd.Flags().String("current", "", "file holding the Java under review (required)")
	fixCmd.Flags().String("feedback", "", "reviewer feedback (required)")
	fixCmd.Flags().StringP("out", "o", "", "write Java to this file instead of stdout")
	_ = fixCmd.MarkFlagRequired("current")
	_ = fixCmd.MarkFlagRequired("feedback")
}

// buildTranslator assembles the pipeline for one-shot commands.
func buildTranslator(cmd *cobra.Command, verify, journal bool) (*translate.Translator, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	repo, err := openRepository(cfg)
	if err != nil {
		return nil, nil, err
	}
	o, err := newOracle(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}

	unit := cfg.Verifier.Unit
	if f := cmd.Flags().Lookup("unit"); f != nil && f.Changed {
		unit = f.Value.String()
	}

	opts := []translate.Option{
		translate.WithUnit(unit),
		translate.WithTemperature(cfg.Oracle.Temperature),
		translate.WithLogger(logger),
	}
	if o != nil {
		opts = append(opts, translate.WithRefiner(translate.NewRefiner(o, repo, logger)))
	}

	cleanup := func() {}
	if journal {
		st, err := openStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, translate.WithJournal(st.journal))
		cleanup = func() { st.Close() }
	}

	var v translate.Verifier
	if verify {
		v = &translate.JavacVerifier{Javac: cfg.Verifier.Javac, Timeout: cfg.Verifier.Timeout}
	}

	return translate.New(rules.NewEngine(repo, logger), o, v, opts...), cleanup, nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	source, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	noVerify, _ := cmd.Flags().GetBool("no-verify")
	noJournal, _ := cmd.Flags().GetBool("no-journal")
	tr, cleanup, err := buildTranslator(cmd, !noVerify, !noJournal)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := tr.Translate(cmd.Context(), source)
	if err != nil {
		return err
	}

	logger.Info("translation finished",
		zap.String("run_id", string(res.RunID)),
		zap.String("unit", tr.Unit()),
		zap.Bool("verified", res.Verified),
		zap.Bool("repaired", res.Repaired),
		zap.Int("unknowns", res.Unknowns))
	if !res.Verified && res.Diagnostics != "" {
		logger.Warn("javac diagnostics", zap.String("diagnostics", res.Diagnostics))
	}

	out, _ := cmd.Flags().GetString("out")
	return writeOutput(out, res.Text, cmd.OutOrStdout())
}

func runFix(cmd *cobra.Command, args []string) error {
	source, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	currentPath, _ := cmd.Flags().GetString("current")
	current, err := readInput([]string{currentPath}, cmd.InOrStdin())
	if err != nil {
		return err
	}
	feedback, _ := cmd.Flags().GetString("feedback")
	if strings.TrimSpace(feedback) == "" {
		return fmt.Errorf("--feedback must not be empty")
	}

	tr, cleanup, err := buildTranslator(cmd, false, true)
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := tr.Fix(cmd.Context(), source, current, feedback)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	return writeOutput(out, text, cmd.OutOrStdout())
}

func runTokens(cmd *cobra.Command, args []string) error {
	source, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}

	for i, tok := range rules.NewEngine(repo, logger).Tokens(source) {
		fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", i+1, tok)
	}
	return nil
}

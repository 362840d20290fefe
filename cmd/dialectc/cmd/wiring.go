package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/core/config"
	"github.com/solatis/dialectc/internal/core/db"
	"github.com/solatis/dialectc/internal/oracle"
	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/seed"
)

// openRepository loads the rule store. An empty store starts from the
// built-in grammar so a fresh checkout translates something.
func openRepository(cfg *config.Config) (*rules.Repository, error) {
	repo, err := rules.OpenRepository(cfg.Rules.Dir, rules.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open rules: %w", err)
	}
	if repo.Len() == 0 {
		n, errs := seed.Apply(repo, seed.Default())
		for _, e := range errs {
			logger.Warn("built-in rule rejected", zap.Error(e))
		}
		logger.Info("rule store empty, using built-in grammar",
			zap.String("path", repo.Path()),
			zap.Int("rules", n))
	}
	return repo, nil
}

func newOracle(ctx context.Context, cfg *config.Config) (oracle.Oracle, error) {
	o, err := oracle.New(ctx, oracle.Config{
		Provider:   cfg.Oracle.Provider,
		Model:      cfg.Oracle.Model,
		BaseURL:    cfg.Oracle.BaseURL,
		APIKey:     config.OracleAPIKey(cfg.Oracle.Provider),
		Timeout:    cfg.Oracle.Timeout,
		MaxRetries: cfg.Oracle.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle: %w", err)
	}
	if o == nil {
		logger.Debug("no oracle configured, running rule-only")
	}
	return o, nil
}

// store bundles the journal database with its query helpers.
type store struct {
	db      *sqlx.DB
	queries *db.Queries
	journal *db.Journal
}

// openStore opens the journal database and applies pending migrations.
func openStore(cfg *config.Config) (*store, error) {
	database, err := db.Open(cfg.Journal.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.MigrateUp(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return &store{db: database, queries: queries, journal: db.NewJournal(queries)}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

// readInput reads a file argument, or stdin for "-" or no argument.
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(b), nil
}

// writeOutput writes text to path, or to w when path is empty.
func writeOutput(path, text string, w io.Writer) error {
	if path == "" {
		_, err := fmt.Fprintln(w, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

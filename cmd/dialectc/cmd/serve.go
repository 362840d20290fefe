package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/solatis/dialectc/internal/core/api"
	"github.com/solatis/dialectc/internal/core/auth"
	"github.com/solatis/dialectc/internal/core/config"
	"github.com/solatis/dialectc/internal/core/server"
	"github.com/solatis/dialectc/internal/index"
	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/translate"
)

// warmIndexSize bounds how many journaled sources seed the similarity index.
const warmIndexSize = 500

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC translation service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().Bool("no-verify", false, "skip javac verification")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
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

	o, err := newOracle(ctx, cfg)
	if err != nil {
		return err
	}

	x := index.New()
	sources, err := st.journal.RecentSources(ctx, warmIndexSize)
	if err != nil {
		return err
	}
	for _, s := range sources {
		x.AddDocument(s)
	}
	logger.Info("similarity index warmed", zap.Int("documents", x.Len()))

	var v translate.Verifier
	if noVerify, _ := cmd.Flags().GetBool("no-verify"); !noVerify {
		v = &translate.JavacVerifier{Javac: cfg.Verifier.Javac, Timeout: cfg.Verifier.Timeout}
	}

	opts := []translate.Option{
		translate.WithIndex(x),
		translate.WithJournal(st.journal),
		translate.WithUnit(cfg.Verifier.Unit),
		translate.WithTemperature(cfg.Oracle.Temperature),
		translate.WithLogger(logger),
	}
	if o != nil {
		opts = append(opts, translate.WithRefiner(translate.NewRefiner(o, repo, logger)))
	}
	tr := translate.New(rules.NewEngine(repo, logger), o, v, opts...)

	service, err := api.NewService(tr, repo, &cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	authenticator, err := newAuthenticator(st)
	if err != nil {
		return err
	}

	grpcServer, err := server.NewGRPCServer(&cfg.Server, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Rules.Watch {
		watcher, err := rules.NewWatcher(repo, cfg.Rules.Debounce, logger)
		if err != nil {
			return fmt.Errorf("failed to create rules watcher: %w", err)
		}
		if err := watcher.Start(gctx); err != nil {
			watcher.Stop()
			return fmt.Errorf("failed to watch rules: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			watcher.Stop()
			return nil
		})
	}

	logger.Info("starting dialectc",
		zap.String("version", Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("oracle", cfg.Oracle.Provider),
		zap.Int("rules", repo.Len()))

	g.Go(func() error {
		if err := grpcServer.Start(gctx); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(context.Background())
	})

	return g.Wait()
}

// newAuthenticator returns nil when no HMAC secrets are configured.
func newAuthenticator(st *store) (*auth.Authenticator, error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return nil, nil
	}
	return auth.NewAuthenticator(secrets, st.queries), nil
}

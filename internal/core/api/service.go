// Package api provides the gRPC Translator service.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/dialectc/internal/core/auth"
	"github.com/solatis/dialectc/internal/core/config"
	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/translate"
	"github.com/solatis/dialectc/internal/types"
)

var ruleKinds = map[types.RuleKind]bool{
	types.KindSegment: true,
	types.KindStmt:    true,
	types.KindBlock:   true,
	types.KindRewrite: true,
}

// Service implements TranslatorServer.
// Thin orchestration layer delegating to translate and rules.
type Service struct {
	translator *translate.Translator
	repo       *rules.Repository
	cfg        *config.ServerConfig
	logger     *zap.Logger
}

// NewService creates service instance with dependencies.
func NewService(t *translate.Translator, repo *rules.Repository, cfg *config.ServerConfig, logger *zap.Logger) (*Service, error) {
	if t == nil {
		return nil, fmt.Errorf("translator cannot be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("repo cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{translator: t, repo: repo, cfg: cfg, logger: logger}, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

func (s *Service) checkSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return status.Error(codes.InvalidArgument, "source must not be empty")
	}
	if s.cfg.MaxSourceBytes > 0 && len(source) > s.cfg.MaxSourceBytes {
		return status.Errorf(codes.InvalidArgument, "source is %d bytes, limit is %d", len(source), s.cfg.MaxSourceBytes)
	}
	return nil
}

// Translate runs the full pipeline for one source text.
func (s *Service) Translate(ctx context.Context, req *TranslateRequest) (*TranslateResponse, error) {
	if err := s.checkSource(req.Source); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.translator.Translate(ctx, req.Source)
	if err != nil {
		s.logger.Error("translate failed", zap.String("principal", auth.PrincipalFromContext(ctx)), zap.Error(err))
		return nil, toStatus(err)
	}

	s.logger.Info("translated",
		zap.String("principal", auth.PrincipalFromContext(ctx)),
		zap.String("run_id", string(res.RunID)),
		zap.Bool("verified", res.Verified),
		zap.Bool("repaired", res.Repaired),
		zap.Int("unknowns", res.Unknowns),
		zap.Duration("elapsed", time.Since(start)))

	return &TranslateResponse{
		Text:        res.Text,
		Verified:    res.Verified,
		Repaired:    res.Repaired,
		Diagnostics: res.Diagnostics,
		Unknowns:    res.Unknowns,
		RunID:       string(res.RunID),
	}, nil
}

// Fix applies reviewer feedback to a previous translation.
func (s *Service) Fix(ctx context.Context, req *FixRequest) (*FixResponse, error) {
	if err := s.checkSource(req.Source); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Feedback) == "" {
		return nil, status.Error(codes.InvalidArgument, "feedback must not be empty")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	text, err := s.translator.Fix(ctx, req.Source, req.Current, req.Feedback)
	if err != nil {
		return nil, toStatus(err)
	}
	return &FixResponse{Text: text}, nil
}

// ListRules returns rules of one kind in priority order, or all rules.
func (s *Service) ListRules(ctx context.Context, req *ListRulesRequest) (*ListRulesResponse, error) {
	resp := &ListRulesResponse{Version: s.repo.Version()}

	kind := types.RuleKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	switch {
	case kind == "":
		resp.Rules = s.repo.All()
	case ruleKinds[kind]:
		resp.Rules = s.repo.OfKind(kind)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown rule kind %q", req.Kind)
	}
	if resp.Rules == nil {
		resp.Rules = []types.Rule{}
	}
	return resp, nil
}

// UpsertRules merges JSONL rules into the repository and persists it.
func (s *Service) UpsertRules(ctx context.Context, req *UpsertRulesRequest) (*UpsertRulesResponse, error) {
	learned := rules.CoerceJSONL(req.JSONL)
	if len(learned) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no usable rules in request")
	}

	ids := make([]string, 0, len(learned))
	for _, r := range learned {
		ids = append(ids, r.ID)
	}
	if err := s.repo.MergeAndSave(learned); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to save rules: %v", err)
	}

	s.logger.Info("rules upserted",
		zap.String("principal", auth.PrincipalFromContext(ctx)),
		zap.Int("accepted", len(learned)),
		zap.Int("total", s.repo.Len()))

	return &UpsertRulesResponse{Accepted: len(learned), IDs: ids, Total: s.repo.Len()}, nil
}

package api

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/dialectc/internal/core/config"
	"github.com/solatis/dialectc/internal/oracle"
	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/seed"
	"github.com/solatis/dialectc/internal/translate"
	"github.com/solatis/dialectc/internal/types"
)

const letRule = `{"id":"stmt_let","type":"stmt","irType":"Assign","regex":"^\\s*LET\\s+(\\w+)\\s*=\\s*(.+?);?\\s*$","fields":["name","expr"]}`

type harness struct {
	client *Client
	repo   *rules.Repository
	oracle *oracle.Scripted
}

func newHarness(t *testing.T, maxSource int) *harness {
	t.Helper()

	repo := rules.NewMemoryRepository()
	_, errs := seed.Apply(repo, seed.Default())
	require.Empty(t, errs)

	o := oracle.NewScripted()
	tr := translate.New(rules.NewEngine(repo, nil), o, nil, translate.WithUnit("Demo"))

	cfg := &config.ServerConfig{RequestTimeout: 5 * time.Second, MaxSourceBytes: maxSource}
	svc, err := NewService(tr, repo, cfg, nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterTranslatorServer(srv, svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{client: NewClient(conn), repo: repo, oracle: o}
}

func TestNewService_Validation(t *testing.T) {
	repo := rules.NewMemoryRepository()
	tr := translate.New(rules.NewEngine(repo, nil), nil, nil)
	cfg := &config.ServerConfig{}

	_, err := NewService(nil, repo, cfg, nil)
	assert.Error(t, err)
	_, err = NewService(tr, nil, cfg, nil)
	assert.Error(t, err)
	_, err = NewService(tr, repo, nil, nil)
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	h := newHarness(t, 1024)
	ctx := context.Background()

	resp, err := h.client.Translate(ctx, &TranslateRequest{Source: "P_X := 1;"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "public class Demo")
	assert.Contains(t, resp.Text, "P_X = 1;")
	assert.Zero(t, resp.Unknowns)
	assert.False(t, resp.Verified)
	_, err = types.ParseRunID(resp.RunID)
	assert.NoError(t, err)
}

func TestTranslate_InvalidArgument(t *testing.T) {
	h := newHarness(t, 16)
	ctx := context.Background()

	for name, src := range map[string]string{
		"empty":     "   ",
		"too large": strings.Repeat("x", 17),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.client.Translate(ctx, &TranslateRequest{Source: src})
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestFix(t *testing.T) {
	h := newHarness(t, 1024)
	ctx := context.Background()

	t.Run("no feedback", func(t *testing.T) {
		_, err := h.client.Fix(ctx, &FixRequest{Source: "P_X := 1;", Current: "class A {}"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("oracle reply", func(t *testing.T) {
		h.oracle.Push("```java\npublic class Demo { int x; }\n```")
		resp, err := h.client.Fix(ctx, &FixRequest{Source: "P_X := 1;", Current: "class A {}", Feedback: "use int"})
		require.NoError(t, err)
		assert.Equal(t, "public class Demo { int x; }", resp.Text)
	})

	t.Run("oracle exhausted", func(t *testing.T) {
		_, err := h.client.Fix(ctx, &FixRequest{Source: "P_X := 1;", Current: "class A {}", Feedback: "again"})
		assert.Equal(t, codes.Unavailable, status.Code(err))
	})
}

func TestListRules(t *testing.T) {
	h := newHarness(t, 1024)
	ctx := context.Background()

	all, err := h.client.ListRules(ctx, &ListRulesRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Rules, h.repo.Len())

	blocks, err := h.client.ListRules(ctx, &ListRulesRequest{Kind: "BLOCK"})
	require.NoError(t, err)
	require.NotEmpty(t, blocks.Rules)
	for _, r := range blocks.Rules {
		assert.Equal(t, types.KindBlock, r.NormalizedKind())
	}

	_, err = h.client.ListRules(ctx, &ListRulesRequest{Kind: "grammar"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestUpsertRules(t *testing.T) {
	h := newHarness(t, 1024)
	ctx := context.Background()

	before, err := h.client.Translate(ctx, &TranslateRequest{Source: "LET y = 2;"})
	require.NoError(t, err)
	assert.Equal(t, 1, before.Unknowns)

	resp, err := h.client.UpsertRules(ctx, &UpsertRulesRequest{JSONL: "```json\n" + letRule + "\n```"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, []string{"stmt_let"}, resp.IDs)
	assert.Equal(t, h.repo.Len(), resp.Total)

	after, err := h.client.Translate(ctx, &TranslateRequest{Source: "LET y = 2;"})
	require.NoError(t, err)
	assert.Zero(t, after.Unknowns)
	assert.Contains(t, after.Text, "y = 2;")

	_, err = h.client.UpsertRules(ctx, &UpsertRulesRequest{JSONL: "not json"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{types.ErrSourceTooLarge, codes.InvalidArgument},
		{types.ErrNoOracle, codes.Unavailable},
		{types.ErrOracleEmpty, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{status.Error(codes.NotFound, "x"), codes.NotFound},
		{assert.AnError, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(toStatus(tt.err)), "err=%v", tt.err)
	}
	assert.NoError(t, toStatus(nil))
}

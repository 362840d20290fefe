package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/dialectc/internal/core/db"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("0123456789abcdef0123456789abcdef-secret")

func setupKeys(t *testing.T) (*db.Queries, *Keys) {
	t.Helper()
	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	q, err := db.LoadQueries(database)
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}
	return q, NewKeys(q)
}

func TestParseAPIKey(t *testing.T) {
	random := strings.Repeat("ab", 32)
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", FormatAPIKey(testSecretID, random), false},
		{"wrong prefix", "tk-v1-" + testSecretID + "-" + random, true},
		{"wrong version", "dc-v2-" + testSecretID + "-" + random, true},
		{"short secret id", "dc-v1-abc-" + random, true},
		{"short random", "dc-v1-" + testSecretID + "-abcd", true},
		{"uppercase hex", "dc-v1-" + strings.ToUpper(testSecretID) + "-" + random, true},
		{"extra part", FormatAPIKey(testSecretID, random) + "-x", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secretID, data, err := ParseAPIKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKeyFormat) {
					t.Errorf("expected ErrInvalidKeyFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if secretID != testSecretID || data != random {
				t.Errorf("got (%s, %s)", secretID, data)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	a, err := GenerateAPIKey(testSecretID)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateAPIKey(testSecretID)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("generated keys must differ")
	}
	if len(a) != 102 {
		t.Errorf("key length = %d, want 102", len(a))
	}
}

func TestHMAC(t *testing.T) {
	h1 := ComputeHMAC(testSecret, "k")
	if !VerifyHMAC(h1, ComputeHMAC(testSecret, "k")) {
		t.Error("same input must verify")
	}
	if VerifyHMAC(h1, ComputeHMAC([]byte("other-secret-other-secret-other!!"), "k")) {
		t.Error("different secret must not verify")
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	q, keys := setupKeys(t)
	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)

	info, key, err := keys.Create(ctx, "ci-runner", testSecretID, testSecret)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	principal, err := a.Authenticate(ctx, key)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if principal != "ci-runner" {
		t.Errorf("principal = %q", principal)
	}

	listed, err := keys.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != info.ID || listed[0].LastUsedAt == nil {
		t.Errorf("unexpected listing %+v", listed)
	}

	t.Run("unknown secret id", func(t *testing.T) {
		other, _ := GenerateAPIKey(strings.Repeat("f", 32))
		if _, err := a.Authenticate(ctx, other); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("expected ErrUnknownKey, got %v", err)
		}
	})

	t.Run("unregistered key", func(t *testing.T) {
		other, _ := GenerateAPIKey(testSecretID)
		if _, err := a.Authenticate(ctx, other); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("revoked", func(t *testing.T) {
		if err := keys.Revoke(ctx, info.ID); err != nil {
			t.Fatalf("Revoke failed: %v", err)
		}
		if _, err := a.Authenticate(ctx, key); !errors.Is(err, ErrKeyRevoked) {
			t.Errorf("expected ErrKeyRevoked, got %v", err)
		}
		if err := keys.Revoke(ctx, info.ID); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("second revoke: expected ErrKeyNotFound, got %v", err)
		}
	})
}

func TestKeysCreate_EmptyName(t *testing.T) {
	_, keys := setupKeys(t)
	if _, _, err := keys.Create(context.Background(), "", testSecretID, testSecret); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestShouldUpdateLastUsed(t *testing.T) {
	if !shouldUpdateLastUsed(sql.NullTime{}) {
		t.Error("never used keys must be updated")
	}
	if shouldUpdateLastUsed(sql.NullTime{Time: time.Now(), Valid: true}) {
		t.Error("recently used keys must not be updated")
	}
	if !shouldUpdateLastUsed(sql.NullTime{Time: time.Now().Add(-2 * time.Minute), Valid: true}) {
		t.Error("stale keys must be updated")
	}
}

func TestUnaryInterceptor(t *testing.T) {
	ctx := context.Background()
	q, keys := setupKeys(t)
	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)
	info, key, err := keys.Create(ctx, "svc", testSecretID, testSecret)
	if err != nil {
		t.Fatal(err)
	}

	var seen string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = PrincipalFromContext(ctx)
		return "ok", nil
	}
	intercept := a.UnaryInterceptor("/grpc.health.v1.Health/Check")
	call := func(ctx context.Context, method string) error {
		_, err := intercept(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
		return err
	}
	withKey := func(k string) context.Context {
		return metadata.NewIncomingContext(ctx, metadata.Pairs("x-api-key", k))
	}

	if err := call(withKey(key), "/dialectc.v1.Translator/Translate"); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	if seen != "svc" {
		t.Errorf("principal = %q, want svc", seen)
	}

	if err := call(ctx, "/grpc.health.v1.Health/Check"); err != nil {
		t.Errorf("skipped method required auth: %v", err)
	}

	tests := []struct {
		name string
		ctx  context.Context
		code codes.Code
	}{
		{"no metadata", ctx, codes.Unauthenticated},
		{"no key", metadata.NewIncomingContext(ctx, metadata.Pairs("other", "x")), codes.Unauthenticated},
		{"bad format", withKey("nope"), codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := call(tt.ctx, "/dialectc.v1.Translator/Translate")
			if status.Code(err) != tt.code {
				t.Errorf("code = %v, want %v", status.Code(err), tt.code)
			}
		})
	}

	if err := keys.Revoke(ctx, info.ID); err != nil {
		t.Fatal(err)
	}
	if err := call(withKey(key), "/dialectc.v1.Translator/Translate"); status.Code(err) != codes.PermissionDenied {
		t.Errorf("revoked key: code = %v, want PermissionDenied", status.Code(err))
	}
}

func TestUnaryInterceptor_DatabaseError(t *testing.T) {
	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatal(err)
	}
	q, err := db.LoadQueries(database)
	if err != nil {
		t.Fatal(err)
	}
	// No migrations: the api_keys table is missing.
	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)
	key, _ := GenerateAPIKey(testSecretID)
	defer database.Close()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", key))
	_, err = a.UnaryInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return nil, nil })
	if status.Code(err) != codes.Unavailable {
		t.Errorf("code = %v, want Unavailable", status.Code(err))
	}
}

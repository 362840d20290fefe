package translate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Verification is the outcome of compiling one generated unit.
type Verification struct {
	OK          bool
	Diagnostics string
}

// Verifier compiles generated source. A failed compilation is reported in
// the Verification, not as an error; errors mean the verifier itself could
// not run its workspace.
type Verifier interface {
	Compile(ctx context.Context, unit, text string) (Verification, error)
}

const defaultJavacTimeout = 60 * time.Second

// JavacVerifier compiles units with an external javac in a scratch directory.
type JavacVerifier struct {
	// Javac is the compiler executable; empty means "javac" on PATH.
	Javac string
	// Timeout bounds one compilation; zero means one minute.
	Timeout time.Duration
}

// Compile writes <unit>.java into a temporary directory and runs javac on
// it. A missing compiler yields OK=false with the exec error as diagnostics.
func (v *JavacVerifier) Compile(ctx context.Context, unit, text string) (Verification, error) {
	dir, err := os.MkdirTemp("", "dialectc-javac-")
	if err != nil {
		return Verification{}, fmt.Errorf("create javac workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, unit+".java")
	if err := os.WriteFile(src, []byte(text), 0o600); err != nil {
		return Verification{}, fmt.Errorf("write %s: %w", filepath.Base(src), err)
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = defaultJavacTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	javac := v.Javac
	if javac == "" {
		javac = "javac"
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, javac, "-d", dir, src)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(out.String())
		if diag == "" {
			diag = err.Error()
		}
		return Verification{OK: false, Diagnostics: diag}, nil
	}
	return Verification{OK: true, Diagnostics: strings.TrimSpace(out.String())}, nil
}

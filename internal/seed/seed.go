// Package seed loads grammar manifests: YAML files listing rules grouped by
// kind, used to bootstrap an empty rule repository.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/types"
)

//go:embed default_manifest.yaml
var defaultManifest []byte

// Manifest is a grammar grouped by rule kind.
type Manifest struct {
	Segments   []Entry `yaml:"segments"`
	Blocks     []Entry `yaml:"blocks"`
	Statements []Entry `yaml:"statements"`
	Rewrites   []Entry `yaml:"rewrites"`
}

// Entry is one rule in a manifest. The kind comes from the list it is in.
type Entry struct {
	ID         string   `yaml:"id"`
	Strategy   string   `yaml:"strategy,omitempty"`
	Regex      string   `yaml:"regex,omitempty"`
	IRType     string   `yaml:"irType,omitempty"`
	Fields     []string `yaml:"fields,omitempty"`
	ListFields []string `yaml:"listFields,omitempty"`
	Open       string   `yaml:"open,omitempty"`
	Middle     []string `yaml:"middle,omitempty"`
	Close      string   `yaml:"close,omitempty"`
	Pattern    string   `yaml:"pattern,omitempty"`
	Replace    *string  `yaml:"replace,omitempty"`
	Priority   int      `yaml:"priority,omitempty"`
}

// Load decodes a manifest.
func Load(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return &m, nil
		}
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// LoadFile decodes the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded default grammar.
func Default() *Manifest {
	m, err := Load(bytes.NewReader(defaultManifest))
	if err != nil {
		panic(fmt.Sprintf("embedded manifest: %v", err))
	}
	return m
}

// Rules flattens a manifest into rules, filling in kind default priorities.
// Entries without an id or that do not compile are returned as errors.
func Rules(m *Manifest) ([]types.Rule, []error) {
	var out []types.Rule
	var errs []error

	groups := []struct {
		kind    types.RuleKind
		entries []Entry
	}{
		{types.KindSegment, m.Segments},
		{types.KindBlock, m.Blocks},
		{types.KindStmt, m.Statements},
		{types.KindRewrite, m.Rewrites},
	}
	for _, g := range groups {
		for _, e := range g.entries {
			r := e.rule(g.kind)
			if r.ID == "" {
				errs = append(errs, fmt.Errorf("%w: %s entry without id", types.ErrInvalidRule, g.kind))
				continue
			}
			if _, err := rules.Compile(r); err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, r)
		}
	}
	return out, errs
}

// Apply merges the manifest into repo by id and returns how many rules were
// merged. Invalid entries are skipped and reported.
func Apply(repo *rules.Repository, m *Manifest) (int, []error) {
	rs, errs := Rules(m)
	for _, r := range rs {
		repo.AddOrMerge(r)
	}
	return len(rs), errs
}

func (e Entry) rule(kind types.RuleKind) types.Rule {
	prio := e.Priority
	if prio == 0 {
		prio = types.DefaultPriority(kind)
	}
	return types.Rule{
		ID:         strings.TrimSpace(e.ID),
		Type:       kind,
		Strategy:   types.Strategy(e.Strategy),
		Regex:      e.Regex,
		IRType:     e.IRType,
		Fields:     e.Fields,
		ListFields: e.ListFields,
		Open:       e.Open,
		Middle:     e.Middle,
		Close:      e.Close,
		Pattern:    e.Pattern,
		Replace:    e.Replace,
		Priority:   prio,
	}
}

// Package index provides an in-memory TF-IDF similarity index over source
// snippets. It supplies neighbouring examples for oracle prompts.
package index

import (
	"math"
	"regexp"
	"sort"
	"sync"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*|\S`)

// Index is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	docs     []string
	termFreq []map[string]int
	docFreq  map[string]int
}

// New returns an empty index.
func New() *Index {
	return &Index{docFreq: make(map[string]int)}
}

// AddDocument indexes text and returns its document id.
func (x *Index) AddDocument(text string) int {
	tf := termCounts(text)

	x.mu.Lock()
	defer x.mu.Unlock()

	id := len(x.docs)
	x.docs = append(x.docs, text)
	x.termFreq = append(x.termFreq, tf)
	for term := range tf {
		x.docFreq[term]++
	}
	return id
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// TopKSimilar returns up to k documents ranked by descending score
// sum(q * tf * ln(1 + N/df)) over the query's terms. Equal scores keep
// insertion order.
func (x *Index) TopKSimilar(query string, k int) []string {
	if k <= 0 {
		return nil
	}
	qtf := termCounts(query)

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.docs)
	type scored struct {
		id    int
		score float64
	}
	ranked := make([]scored, n)
	for i := 0; i < n; i++ {
		score := 0.0
		for term, q := range qtf {
			df := x.docFreq[term]
			if df == 0 {
				continue
			}
			tf := x.termFreq[i][term]
			score += float64(q*tf) * math.Log(1+float64(n)/float64(df))
		}
		ranked[i] = scored{id: i, score: score}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if k > n {
		k = n
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = x.docs[ranked[i].id]
	}
	return out
}

func termCounts(text string) map[string]int {
	tf := make(map[string]int)
	for _, t := range tokenPattern.FindAllString(text, -1) {
		tf[t]++
	}
	return tf
}

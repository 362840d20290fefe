package rules

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

// regexCacheSize bounds compiled patterns kept across matcher refreshes.
// Learned rule sets are typically a few hundred patterns.
const regexCacheSize = 2048

type regexEntry struct {
	re  *regexp.Regexp
	err error
}

var regexCache *lru.Cache[string, regexEntry]

func init() {
	c, err := lru.New[string, regexEntry](regexCacheSize)
	if err != nil {
		panic(err)
	}
	regexCache = c
}

// compileCached compiles expr once and remembers failures too, so a bad
// learned pattern is not recompiled for every token.
func compileCached(expr string) (*regexp.Regexp, error) {
	if e, ok := regexCache.Get(expr); ok {
		return e.re, e.err
	}
	re, err := regexp.Compile(expr)
	regexCache.Add(expr, regexEntry{re: re, err: err})
	return re, err
}

// fullMatch wraps expr so it must match the whole input.
func fullMatch(expr string, foldCase bool) string {
	prefix := ""
	if foldCase {
		prefix = "(?i)"
	}
	return prefix + "^(?:" + expr + ")$"
}

func compileFull(expr string, foldCase bool) (*regexp.Regexp, error) {
	return compileCached(fullMatch(expr, foldCase))
}

func compileSearch(expr string, foldCase bool) (*regexp.Regexp, error) {
	if foldCase {
		expr = "(?i)" + expr
	}
	return compileCached(expr)
}

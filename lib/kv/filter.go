package kv

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// Operator combines the prefix-match and originator-match criteria of a
// Filters, per spec.md §4.2.
type Operator int

const (
	OperatorOR Operator = iota
	OperatorAND
)

func (o Operator) String() string {
	if o == OperatorAND {
		return "AND"
	}
	return "OR"
}

// Filters compiles key-prefix patterns and an originator set into the
// matcher used by Area Database merges, dump/hash-dump requests, and
// subscription routing (spec.md §4.2), grounded on Open/R's
// KvStoreFilters (original_source/openr/kvstore/KvStoreUtil.h).
type Filters struct {
	prefixes     []string
	prefixRegex  *regexp.Regexp // nil iff prefixes is empty (matches all)
	originators  map[string]struct{}
	operator     Operator
	ignoreTTL    bool
	noPublishVal bool
}

// NewFilters compiles a Filters from raw key-prefix patterns and a set
// of originator IDs. An empty prefixes list matches every key and an
// empty originators set matches every originator under OperatorAND.
// Under OperatorOR an empty criterion does not count as a match on its
// own: only a Filters with both criteria empty matches everything.
func NewFilters(prefixes []string, originators []string, operator Operator) (*Filters, error) {
	f := &Filters{
		prefixes:    append([]string(nil), prefixes...),
		originators: make(map[string]struct{}, len(originators)),
		operator:    operator,
	}
	for _, o := range originators {
		f.originators[o] = struct{}{}
	}
	if len(prefixes) > 0 {
		// Anchored alternation over the provided prefixes, one regex
		// set matching "starts with any of these", per KvStoreFilters'
		// RE2 set semantics.
		escaped := make([]string, len(prefixes))
		for i, p := range prefixes {
			escaped[i] = regexp.QuoteMeta(p)
		}
		compiled, err := regexp.Compile("^(?:" + strings.Join(escaped, "|") + ")")
		if err != nil {
			return nil, errors.Wrapf(err, "kv: invalid key prefix filter")
		}
		f.prefixRegex = compiled
	}
	return f, nil
}

// WithStreamFlags returns a copy of f carrying the ignoreTtl and
// doNotPublishValue projection flags used by subscription delivery
// (spec.md §4.7). Filters themselves stay immutable once constructed.
func (f *Filters) WithStreamFlags(ignoreTTL, doNotPublishValue bool) *Filters {
	var f2 Filters
	if f != nil {
		f2 = *f
	}
	f2.ignoreTTL = ignoreTTL
	f2.noPublishVal = doNotPublishValue
	return &f2
}

func (f *Filters) IgnoreTTL() bool          { return f.ignoreTTL }
func (f *Filters) DoNotPublishValue() bool  { return f.noPublishVal }
func (f *Filters) Operator() Operator       { return f.operator }
func (f *Filters) Prefixes() []string       { return append([]string(nil), f.prefixes...) }
func (f *Filters) Originators() []string {
	out := make([]string, 0, len(f.originators))
	for o := range f.originators {
		out = append(out, o)
	}
	return out
}

// matchesPrefix reports whether key matches any configured prefix; an
// empty prefix list matches all keys.
func (f *Filters) matchesPrefix(key string) bool {
	if f.prefixRegex == nil {
		return true
	}
	return f.prefixRegex.MatchString(key)
}

// matchesOriginator reports whether value's originator is in the
// configured set; an empty set matches all originators.
func (f *Filters) matchesOriginator(originatorID string) bool {
	if len(f.originators) == 0 {
		return true
	}
	_, ok := f.originators[originatorID]
	return ok
}

// Matches implements the combined key+originator match described in
// spec.md §4.2. A nil Filters matches everything, which lets callers
// pass an optional filter without a sentinel "match-all" allocation.
func (f *Filters) Matches(key string, v Value) bool {
	if f == nil {
		return true
	}
	prefixOK := f.matchesPrefix(key)
	originatorOK := f.matchesOriginator(v.OriginatorID)
	if f.operator == OperatorAND {
		return prefixOK && originatorOK
	}
	if f.prefixRegex == nil && len(f.originators) == 0 {
		return true
	}
	return (f.prefixRegex != nil && prefixOK) || (len(f.originators) > 0 && originatorOK)
}

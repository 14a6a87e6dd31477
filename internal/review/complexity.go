package review

import (
	"regexp"
	"strings"
)

// complexitySignals are scored against the uppercased statement. One hit
// from a structural signal is enough; plain clause count adds up.
var complexitySignals = []struct {
	name string
	re   *regexp.Regexp
}{
	{"join", regexp.MustCompile(`\bJOIN\b`)},
	{"subquery", regexp.MustCompile(`\(\s*SELECT\b`)},
	{"cte", regexp.MustCompile(`^\s*WITH\b`)},
	{"union", regexp.MustCompile(`\b(UNION|INTERSECT|EXCEPT)\b`)},
	{"window", regexp.MustCompile(`\bOVER\s*\(`)},
	{"group_by", regexp.MustCompile(`\bGROUP\s+BY\b`)},
	{"having", regexp.MustCompile(`\bHAVING\b`)},
}

var clauseKeywords = []string{"WHERE", "ORDER BY", "LIMIT", "CASE", "DISTINCT"}

// ComplexityResult explains a ComplexityPolicy decision.
type ComplexityResult struct {
	Complex bool
	Signals []string
	Clauses int
}

// ComplexityPolicy decides whether a statement is worth a second opinion.
// ReviewAll forces every statement through the reviewer.
type ComplexityPolicy struct {
	ReviewAll  bool
	MaxClauses int
}

func NewComplexityPolicy(reviewAll bool) *ComplexityPolicy {
	return &ComplexityPolicy{ReviewAll: reviewAll, MaxClauses: 3}
}

func (p *ComplexityPolicy) Assess(sql string) ComplexityResult {
	upper := strings.ToUpper(sql)

	var res ComplexityResult
	for _, s := range complexitySignals {
		if s.re.MatchString(upper) {
			res.Signals = append(res.Signals, s.name)
		}
	}
	for _, kw := range clauseKeywords {
		if strings.Contains(upper, kw) {
			res.Clauses++
		}
	}

	limit := p.MaxClauses
	if limit <= 0 {
		limit = 3
	}
	res.Complex = p.ReviewAll || len(res.Signals) > 0 || res.Clauses > limit
	return res
}

func (p *ComplexityPolicy) IsComplex(sql string) bool {
	return p.Assess(sql).Complex
}

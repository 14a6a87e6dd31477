package security

import (
	"slices"
	"strings"
)

// BlockedRefusal is the fixed message returned to callers for a blocked statement.
const BlockedRefusal = "This request was refused: only read-only queries are allowed against the warehouse."

// DefaultBlockedKeywords are the mutating verbs no statement may contain as a token.
var DefaultBlockedKeywords = []string{
	"DELETE", "DROP", "TRUNCATE", "UPDATE", "INSERT",
	"ALTER", "CREATE", "MERGE", "GRANT", "REVOKE",
}

// Statement is a candidate SQL string with its uppercase whitespace tokens.
// Tokens exist only for keyword matching.
type Statement struct {
	text   string
	tokens []string
}

func NewStatement(sql string) Statement {
	return Statement{
		text:   sql,
		tokens: strings.Fields(strings.ToUpper(sql)),
	}
}

func (s Statement) Text() string { return s.text }

// Tokens returns a copy of the token sequence.
func (s Statement) Tokens() []string {
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}

func (s Statement) IsEmpty() bool { return len(s.tokens) == 0 }

// BlockedKeywordSet is an ordered, case-insensitive keyword set. It has no
// mutating methods and is safe for concurrent use.
type BlockedKeywordSet struct {
	ordered []string
	index   map[string]struct{}
}

func NewBlockedKeywordSet(keywords []string) *BlockedKeywordSet {
	s := &BlockedKeywordSet{index: make(map[string]struct{}, len(keywords))}
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := s.index[kw]; dup {
			continue
		}
		s.index[kw] = struct{}{}
		s.ordered = append(s.ordered, kw)
	}
	return s
}

// WithDefaultKeywords returns DefaultBlockedKeywords plus extra. Configured
// keywords can only add to the built-in verbs.
func WithDefaultKeywords(extra []string) *BlockedKeywordSet {
	return NewBlockedKeywordSet(append(slices.Clone(DefaultBlockedKeywords), extra...))
}

func (s *BlockedKeywordSet) Contains(token string) bool {
	_, ok := s.index[strings.ToUpper(token)]
	return ok
}

func (s *BlockedKeywordSet) Keywords() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s *BlockedKeywordSet) Len() int { return len(s.ordered) }

// AdmissionVerdict is either Admitted or Blocked with the matched keyword.
type AdmissionVerdict struct {
	blocked bool
	reason  string
	keyword string
}

func (v AdmissionVerdict) Admitted() bool  { return !v.blocked }
func (v AdmissionVerdict) Blocked() bool   { return v.blocked }
func (v AdmissionVerdict) Reason() string  { return v.reason }
func (v AdmissionVerdict) Keyword() string { return v.keyword }

func (v AdmissionVerdict) String() string {
	if v.blocked {
		return "blocked:" + v.keyword
	}
	return "admitted"
}

// AdmissionFilter is the hard gate in front of the warehouse. A statement is
// blocked when any whitespace-delimited token equals a blocked keyword.
// Substrings never match: CREATED and UPDATED_AT are admitted.
type AdmissionFilter struct {
	keywords *BlockedKeywordSet
}

func NewAdmissionFilter(keywords *BlockedKeywordSet) *AdmissionFilter {
	if keywords == nil || keywords.Len() == 0 {
		keywords = NewBlockedKeywordSet(DefaultBlockedKeywords)
	}
	return &AdmissionFilter{keywords: keywords}
}

func (f *AdmissionFilter) Keywords() *BlockedKeywordSet { return f.keywords }

// Admit reports the first blocked token in statement order. It never fails;
// an empty statement is admitted and left to the query path.
//
// Punctuation glued to a keyword (DELETE; or DELETE(...)) produces a token
// that is not equal to the keyword, so it is admitted here. The static
// reviewer reports that shape as a finding.
func (f *AdmissionFilter) Admit(stmt Statement) AdmissionVerdict {
	for _, tok := range stmt.tokens {
		if _, hit := f.keywords.index[tok]; hit {
			return AdmissionVerdict{
				blocked: true,
				reason:  "statement contains blocked keyword " + tok,
				keyword: tok,
			}
		}
	}
	return AdmissionVerdict{}
}

// AdmitSQL is shorthand for Admit(NewStatement(sql)).
func (f *AdmissionFilter) AdmitSQL(sql string) AdmissionVerdict {
	return f.Admit(NewStatement(sql))
}

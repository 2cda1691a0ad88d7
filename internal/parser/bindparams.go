package parser

import "regexp"

var bindRe = regexp.MustCompile(`\$(\d+)`)
var likeRe = regexp.MustCompile(`(?i)\blike\b`)

// SubstituteDummyLiterals replaces every numbered bind marker ($N) with a
// dummy integer literal, the Cost Estimator's fallback path (§4.4) for
// databases or queries that can't use generic-plan EXPLAIN. The spec
// calls for "a dummy literal whose SQL type is inferred (integer-by-default
// fallback)" — the advisor makes no attempt at real type inference from
// surrounding context, so every marker becomes the same integer dummy.
func SubstituteDummyLiterals(query string) string {
	return bindRe.ReplaceAllString(query, "0")
}

// HasLike reports whether the query text contains a LIKE keyword, used
// to gate generic-plan eligibility (§4.4, §9 open question — the source
// special-cases only LIKE, not SIMILAR TO or ~).
func HasLike(query string) bool {
	return likeRe.MatchString(query)
}

// HasBindParams reports whether the query text contains a numbered bind
// marker ($N).
func HasBindParams(query string) bool {
	return bindRe.MatchString(query)
}

package facts

import (
	"regexp"
	"strings"
)

// subjectAliases all collapse to the canonical "user" subject.
var subjectAliases = map[string]struct{}{
	"user": {}, "the user": {}, "me": {}, "myself": {}, "i": {},
}

// identityPredicates collapse to the canonical "is" predicate.
var identityPredicates = map[string]struct{}{
	"is": {}, "am": {}, "name_is": {}, "is_called": {}, "named": {}, "called": {},
}

// objectEchoRe strips extraction echoes like "the user is a teacher"
// arriving as the object of a (user, is, ...) triple.
var objectEchoRe = regexp.MustCompile(`(?i)^(the )?user (is|prefers) `)

// NormalizeSubject lowercases, trims, and collapses first-person
// aliases to "user".
func NormalizeSubject(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	if _, ok := subjectAliases[s]; ok {
		return "user"
	}
	return s
}

// NormalizePredicate lowercases and snake-cases the predicate, forces
// "prefers" for preference facts, and collapses identity aliases
// (including any is_* variant) to "is".
func NormalizePredicate(predicate string, category Category) string {
	if category == CategoryPreference {
		return "prefers"
	}
	p := strings.ToLower(strings.TrimSpace(predicate))
	p = strings.ReplaceAll(p, " ", "_")
	if _, ok := identityPredicates[p]; ok {
		return "is"
	}
	if strings.HasPrefix(p, "is_") {
		return "is"
	}
	return p
}

// NormalizeObject trims the object and strips a leading
// "(the) user is/prefers " echo.
func NormalizeObject(object string) string {
	o := strings.TrimSpace(object)
	o = objectEchoRe.ReplaceAllString(o, "")
	return strings.TrimSpace(o)
}

// NormalizeTriple applies all three normalizations.
func NormalizeTriple(subject, predicate, object string, category Category) (string, string, string) {
	return NormalizeSubject(subject),
		NormalizePredicate(predicate, category),
		NormalizeObject(object)
}

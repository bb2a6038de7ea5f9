// Package names canonicalizes free-text machine, component and brand labels
// into a small controlled vocabulary.
//
// Normalization is two-phase: a lossless fold (strip diacritics, lowercase,
// trim) followed by a configured cardinality-reduction map that collapses
// near-duplicate labels ("CAMIÓN", "camion ") onto one canonical form. Both
// phases are pure and idempotent.
package names

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips diacritics, lowercases and trims surrounding whitespace.
// Fold(Fold(x)) == Fold(x) for all inputs.
func Fold(s string) string {
	folded, _, err := transform.String(foldChain, s)
	if err != nil {
		// Remove(Mn) never fails; fall back to the raw string if the
		// input is not valid UTF-8.
		folded = s
	}
	return strings.TrimSpace(strings.ToLower(folded))
}

// Rule maps any label containing Pattern to Canonical.
type Rule struct {
	Pattern   string
	Canonical string
}

// Reducer applies a cardinality-reduction table. Rules are tried longest
// pattern first so the most specific match wins ("mando final trasero"
// before "mando final"). Labels matching no rule pass through unchanged.
type Reducer struct {
	rules []Rule
}

// NewReducer builds a Reducer from pattern→canonical pairs. The input map is
// copied; later mutation of it does not affect the Reducer.
func NewReducer(table map[string]string) *Reducer {
	rules := make([]Rule, 0, len(table))
	for pattern, canonical := range table {
		rules = append(rules, Rule{Pattern: pattern, Canonical: canonical})
	}
	// Longest pattern first; ties broken lexically for determinism.
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].Pattern) != len(rules[j].Pattern) {
			return len(rules[i].Pattern) > len(rules[j].Pattern)
		}
		return rules[i].Pattern < rules[j].Pattern
	})
	return &Reducer{rules: rules}
}

// Normalize folds the label and applies the reduction table. The second
// return reports whether a rule matched; unmatched labels pass through
// folded but otherwise unchanged so callers can flag them for audit.
func (r *Reducer) Normalize(label string) (string, bool) {
	folded := Fold(label)
	if folded == "" {
		return "", false
	}
	for _, rule := range r.rules {
		if strings.Contains(folded, rule.Pattern) {
			return rule.Canonical, true
		}
	}
	return folded, false
}

// DefaultMachineTable reduces machine-type labels.
func DefaultMachineTable() map[string]string {
	return map[string]string{
		"bulldozer": "bulldozer",
		"camion":    "camion",
		"pala":      "pala",
		"cargador":  "cargador",
	}
}

// DefaultComponentTable reduces component labels. Positional detail is kept
// where it matters for thresholding (left vs right final drives wear
// differently only when the table says so).
func DefaultComponentTable() map[string]string {
	return map[string]string{
		"mando final": "mando final",
		"motor":       "motor",
		"hidraulico":  "hidraulico",
		"refrig":      "refrigerante",
		"aceite":      "aceite",
		"vibrador":    "vibrador",
		"cojinete ":   "cojinete",
		"winche":      "winche",
		"trasmision":  "transmision",
		"transmision": "transmision",
		"tandem":      "tandem",
		"cubo":        "cubo",
		"eje":         "eje",
		"engranaje":   "engranaje",
		"freno":       "freno",
		"retardador":  "retardador",
		"rueda":       "rueda",
		"direccion":   "direccion",
		"diferencial": "diferencial",
	}
}

// DefaultBrandTable reduces machine-brand labels.
func DefaultBrandTable() map[string]string {
	return map[string]string{
		"cat":     "caterpillar",
		"komatsu": "komatsu",
		"liebher": "liebherr",
	}
}

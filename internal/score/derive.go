package score

import (
	"strings"

	"github.com/clingen-curation-server/internal/domain"
)

// ModeOfInheritanceType resolves the free-text mode of inheritance of a
// gene-disease record to a score-table category. First match wins; an
// unmatched mode (codominant, unknown, ...) resolves to MOINone and the
// record is not scorable.
func ModeOfInheritanceType(moi string) domain.MOICategory {
	if moi == "" {
		return domain.MOINone
	}
	switch {
	case strings.Contains(moi, "Autosomal dominant inheritance"):
		return domain.AUTOSOMAL_DOMINANT
	case strings.Contains(moi, "Autosomal recessive inheritance"):
		return domain.AUTOSOMAL_RECESSIVE
	case strings.Contains(moi, "X-linked"):
		return domain.X_LINKED
	case strings.Contains(moi, "Semidominant inheritance"):
		return domain.SEMIDOMINANT
	case strings.Contains(moi, "Mitochondrial inheritance"):
		return domain.MITOCHONDRIAL
	default:
		return domain.MOINone
	}
}

// EffectiveMOI maps a semidominant record to the dominant or recessive score
// table depending on what the proband is. Other categories pass through.
func EffectiveMOI(category domain.MOICategory, probandIs string) domain.MOICategory {
	if category != domain.SEMIDOMINANT || probandIs == "" {
		return category
	}
	if probandIs == domain.ProbandMonoallelicHet || probandIs == domain.ProbandHemizygous {
		return domain.AUTOSOMAL_DOMINANT
	}
	return domain.AUTOSOMAL_RECESSIVE
}

// VariantCategoryKey builds the variant half of a score-table key. The
// functional-data suffix always precedes the de-novo suffix.
func VariantCategoryKey(facts domain.CaseFacts) string {
	key := string(facts.VariantType)
	if facts.FunctionalDataSupport == domain.Yes {
		key += "_FUNCTIONAL_DATA"
	}
	if facts.DeNovo == domain.Yes {
		key += "_IS_DE_NOVO"
	}
	return key
}

func caseKey(moi domain.MOICategory, facts domain.CaseFacts) (string, bool) {
	if moi == domain.MOINone || !facts.VariantType.IsValid() {
		return "", false
	}
	return string(moi) + "_" + VariantCategoryKey(facts), true
}

// DefaultScore returns the SOP default for the given case. A previously saved
// score always wins: historical scores are never recomputed against a newer
// table. Returns nil when no rule applies.
func DefaultScore(moi domain.MOICategory, facts domain.CaseFacts, saved *float64) *float64 {
	if saved != nil {
		return saved
	}
	key, ok := caseKey(moi, facts)
	if !ok {
		return nil
	}
	entry, ok := Lookup(key)
	if !ok {
		return nil
	}
	v := entry.DefaultScore
	return &v
}

// ScoreRange returns the adjustable alternatives for the case: the table range
// with the default removed. Empty when no rule applies or no default exists.
func ScoreRange(moi domain.MOICategory, facts domain.CaseFacts, defaultScore *float64) []float64 {
	key, ok := caseKey(moi, facts)
	if !ok {
		return nil
	}
	return rangeWithoutDefault(key, defaultScore)
}

// UpperLimit returns the per-proband total cap for the case, or nil when the
// table has no entry for it.
func UpperLimit(moi domain.MOICategory, facts domain.CaseFacts) *float64 {
	key, ok := caseKey(moi, facts)
	if !ok {
		return nil
	}
	entry, ok := Lookup(key)
	if !ok {
		return nil
	}
	return entry.UpperLimit
}

// ExperimentalDefaultScore is the experimental-evidence variant of
// DefaultScore: the category is the table key directly.
func ExperimentalDefaultScore(category domain.ExperimentalCategory, saved *float64) *float64 {
	if saved != nil {
		return saved
	}
	entry, ok := Lookup(string(category))
	if !ok {
		return nil
	}
	v := entry.DefaultScore
	return &v
}

// ExperimentalScoreRange is the experimental-evidence variant of ScoreRange.
func ExperimentalScoreRange(category domain.ExperimentalCategory, defaultScore *float64) []float64 {
	return rangeWithoutDefault(string(category), defaultScore)
}

func rangeWithoutDefault(key string, defaultScore *float64) []float64 {
	entry, ok := Lookup(key)
	if !ok || defaultScore == nil {
		return nil
	}
	filtered := make([]float64, 0, len(entry.ScoreRange))
	for _, v := range entry.ScoreRange {
		if v != *defaultScore {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// Derivation bundles everything the score form needs for a single case.
type Derivation struct {
	DefaultScore *float64  `json:"defaultScore"`
	ScoreRange   []float64 `json:"scoreRange"`
	UpperLimit   *float64  `json:"upperLimit"`
}

// Derive computes the default score, adjustable range, and upper limit for a
// case. Incomplete facts produce an empty Derivation, never an error: the
// caller disables score entry until the prerequisites resolve.
func Derive(facts domain.CaseFacts, saved *float64) Derivation {
	if !facts.ScoreComplete() {
		return Derivation{}
	}
	moi := EffectiveMOI(ModeOfInheritanceType(facts.ModeOfInheritance), facts.ProbandIs)
	def := DefaultScore(moi, facts, saved)
	return Derivation{
		DefaultScore: def,
		ScoreRange:   ScoreRange(moi, facts, def),
		UpperLimit:   UpperLimit(moi, facts),
	}
}

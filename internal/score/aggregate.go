package score

import (
	"strings"

	"github.com/clingen-curation-server/internal/domain"
)

// IsDoubleCounted reports whether a scored variant counts for both alleles.
// Biallelic evidence under a recessive (or recessive-acting semidominant)
// record is tallied twice.
func IsDoubleCounted(moiType domain.MOICategory, recessiveZygosity domain.Zygosity, probandIs string) bool {
	switch moiType {
	case domain.AUTOSOMAL_RECESSIVE:
		return recessiveZygosity == domain.Homozygous
	case domain.SEMIDOMINANT:
		if strings.Contains(probandIs, domain.ProbandBiallelicHom) {
			return true
		}
		return strings.Contains(probandIs, domain.ProbandBiallelicCompHet) &&
			recessiveZygosity == domain.Homozygous
	default:
		return false
	}
}

// Row is one displayed line of the proband score table. Double-counted
// variants appear as two identical rows.
type Row struct {
	Score domain.VariantScore `json:"score"`
}

// Totals is the aggregated outcome for one proband's scored evidence.
type Totals struct {
	DefaultTotal  float64 `json:"defaultTotal"`
	AdjustedTotal float64 `json:"adjustedTotal"`
	// HasAdjusted signals that at least one item carries a curator
	// adjustment; the adjusted total is only shown when it does.
	HasAdjusted bool  `json:"hasAdjusted"`
	Rows        []Row `json:"rows"`
}

// Aggregate totals a proband's scored evidence. Only items with status
// "Score" count. When the double-count rule applies every counted item is
// appended twice. If exactly two counted rows share variant type, functional
// data support, and de-novo status, both totals are capped at the table's
// upper limit for that shared category; three or more rows are never capped
// (the SOP allows at most two countable scores per proband, so the overflow
// case is left untouched). Input items are not mutated.
func Aggregate(items []domain.VariantScore, moiType domain.MOICategory, recessiveZygosity domain.Zygosity, probandIs string) Totals {
	var t Totals
	doubleCount := IsDoubleCounted(moiType, recessiveZygosity, probandIs)

	for _, item := range items {
		if item.ScoreStatus != domain.StatusScore {
			continue
		}
		t.addRow(item)
		if doubleCount {
			t.addRow(item)
		}
	}

	if len(t.Rows) == 2 && sameScoreCategory(t.Rows[0].Score, t.Rows[1].Score) {
		facts := domain.CaseFacts{
			VariantType:           t.Rows[0].Score.VariantType,
			FunctionalDataSupport: t.Rows[0].Score.FunctionalDataSupport,
			DeNovo:                t.Rows[0].Score.DeNovo,
		}
		moi := EffectiveMOI(moiType, probandIs)
		if ul := UpperLimit(moi, facts); ul != nil {
			if t.DefaultTotal > *ul {
				t.DefaultTotal = *ul
			}
			if t.AdjustedTotal > *ul {
				t.AdjustedTotal = *ul
			}
		}
	}

	return t
}

func (t *Totals) addRow(item domain.VariantScore) {
	t.Rows = append(t.Rows, Row{Score: item})
	if item.CalculatedScore != nil {
		t.DefaultTotal += *item.CalculatedScore
	}
	switch {
	case item.Score != nil:
		t.AdjustedTotal += *item.Score
		t.HasAdjusted = true
	case item.CalculatedScore != nil:
		t.AdjustedTotal += *item.CalculatedScore
	}
}

func sameScoreCategory(a, b domain.VariantScore) bool {
	return a.VariantType == b.VariantType &&
		a.FunctionalDataSupport == b.FunctionalDataSupport &&
		a.DeNovo == b.DeNovo
}

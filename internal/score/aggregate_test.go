package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clingen-curation-server/internal/domain"
)

func TestIsDoubleCounted(t *testing.T) {
	tests := []struct {
		name      string
		moiType   domain.MOICategory
		zygosity  domain.Zygosity
		probandIs string
		want      bool
	}{
		{"recessive homozygous", domain.AUTOSOMAL_RECESSIVE, domain.Homozygous, "", true},
		{"recessive heterozygous", domain.AUTOSOMAL_RECESSIVE, domain.Heterozygous, "", false},
		{"recessive no zygosity", domain.AUTOSOMAL_RECESSIVE, domain.ZygosityNone, "", false},
		{"semidominant biallelic homozygous", domain.SEMIDOMINANT, domain.ZygosityNone, domain.ProbandBiallelicHom, true},
		{"semidominant compound het homozygous", domain.SEMIDOMINANT, domain.Homozygous, domain.ProbandBiallelicCompHet, true},
		{"semidominant compound het heterozygous", domain.SEMIDOMINANT, domain.Heterozygous, domain.ProbandBiallelicCompHet, false},
		{"semidominant monoallelic het", domain.SEMIDOMINANT, domain.Homozygous, domain.ProbandMonoallelicHet, false},
		{"dominant homozygous", domain.AUTOSOMAL_DOMINANT, domain.Homozygous, "", false},
		{"x-linked homozygous", domain.X_LINKED, domain.Homozygous, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDoubleCounted(tt.moiType, tt.zygosity, tt.probandIs))
		})
	}
}

func scoreItem(calculated float64, adjusted *float64, vt domain.VariantType, fd, dn domain.TriState) domain.VariantScore {
	return domain.VariantScore{
		ScoreStatus:           domain.StatusScore,
		CalculatedScore:       &calculated,
		Score:                 adjusted,
		VariantType:           vt,
		FunctionalDataSupport: fd,
		DeNovo:                dn,
	}
}

func TestAggregateOnlyScoreStatusCounts(t *testing.T) {
	calc := 1.5
	items := []domain.VariantScore{
		scoreItem(1.5, nil, domain.PREDICTED_OR_PROVEN_NULL, domain.No, domain.No),
		{ScoreStatus: domain.StatusReview, CalculatedScore: &calc},
		{ScoreStatus: domain.StatusContradicts, CalculatedScore: &calc},
		{ScoreStatus: domain.StatusSupports, CalculatedScore: &calc},
	}

	got := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
	assert.Equal(t, 1.5, got.DefaultTotal)
	assert.Equal(t, 1.5, got.AdjustedTotal)
	assert.False(t, got.HasAdjusted)
	assert.Len(t, got.Rows, 1)
}

func TestAggregateDoubleCountDoublesTotalsAndRows(t *testing.T) {
	items := []domain.VariantScore{
		scoreItem(1.5, nil, domain.PREDICTED_OR_PROVEN_NULL, domain.No, domain.No),
	}

	got := Aggregate(items, domain.AUTOSOMAL_RECESSIVE, domain.Homozygous, "")
	assert.Len(t, got.Rows, 2)
	// The duplicated pair shares its category, so the upper limit applies.
	assert.Equal(t, 3.0, got.DefaultTotal)
	assert.Equal(t, 3.0, got.AdjustedTotal)
}

func TestAggregateAdjustedOverridesDefault(t *testing.T) {
	adj := 0.5
	items := []domain.VariantScore{
		scoreItem(1.5, &adj, domain.PREDICTED_OR_PROVEN_NULL, domain.No, domain.No),
		scoreItem(0.1, nil, domain.OTHER_VARIANT_TYPE, domain.No, domain.No),
	}

	got := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
	assert.InDelta(t, 1.6, got.DefaultTotal, 1e-9)
	assert.InDelta(t, 0.6, got.AdjustedTotal, 1e-9)
	assert.True(t, got.HasAdjusted)
}

func TestAggregateNilCalculatedContributesZero(t *testing.T) {
	items := []domain.VariantScore{
		{ScoreStatus: domain.StatusScore, VariantType: domain.OTHER_VARIANT_TYPE,
			FunctionalDataSupport: domain.No, DeNovo: domain.No},
	}

	got := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
	assert.Equal(t, 0.0, got.DefaultTotal)
	assert.Equal(t, 0.0, got.AdjustedTotal)
	assert.Len(t, got.Rows, 1)
}

func TestAggregateCapRule(t *testing.T) {
	nullNoNo := func() domain.VariantScore {
		return scoreItem(1.5, nil, domain.PREDICTED_OR_PROVEN_NULL, domain.No, domain.No)
	}

	t.Run("two matching rows cap at upper limit", func(t *testing.T) {
		items := []domain.VariantScore{nullNoNo(), nullNoNo()}
		got := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
		assert.Equal(t, 3.0, got.DefaultTotal)
		assert.Equal(t, 3.0, got.AdjustedTotal)
	})

	t.Run("three matching rows are never capped", func(t *testing.T) {
		items := []domain.VariantScore{nullNoNo(), nullNoNo(), nullNoNo()}
		got := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
		assert.Equal(t, 4.5, got.DefaultTotal)
		assert.Equal(t, 4.5, got.AdjustedTotal)
	})

	t.Run("two mismatched rows are not capped", func(t *testing.T) {
		items := []domain.VariantScore{
			nullNoNo(),
			scoreItem(2.0, nil, domain.PREDICTED_OR_PROVEN_NULL, domain.Yes, domain.No),
		}
		got := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
		assert.Equal(t, 3.5, got.DefaultTotal)
	})

	t.Run("two matching rows under the limit stay untouched", func(t *testing.T) {
		items := []domain.VariantScore{
			scoreItem(0.1, nil, domain.OTHER_VARIANT_TYPE, domain.No, domain.No),
			scoreItem(0.1, nil, domain.OTHER_VARIANT_TYPE, domain.No, domain.No),
		}
		got := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
		assert.InDelta(t, 0.2, got.DefaultTotal, 1e-9)
	})

	t.Run("semidominant cap uses the proband-resolved table", func(t *testing.T) {
		items := []domain.VariantScore{nullNoNo(), nullNoNo()}
		got := Aggregate(items, domain.SEMIDOMINANT, domain.ZygosityNone, domain.ProbandMonoallelicHet)
		assert.Equal(t, 3.0, got.DefaultTotal)
	})
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	items := []domain.VariantScore{
		scoreItem(1.5, nil, domain.PREDICTED_OR_PROVEN_NULL, domain.No, domain.No),
	}
	before := *items[0].CalculatedScore

	_ = Aggregate(items, domain.AUTOSOMAL_RECESSIVE, domain.Homozygous, "")
	_ = Aggregate(items, domain.AUTOSOMAL_RECESSIVE, domain.Homozygous, "")

	require.Equal(t, before, *items[0].CalculatedScore)
}

func TestAggregateIdempotent(t *testing.T) {
	items := []domain.VariantScore{
		scoreItem(1.5, nil, domain.PREDICTED_OR_PROVEN_NULL, domain.No, domain.No),
		scoreItem(0.1, nil, domain.OTHER_VARIANT_TYPE, domain.No, domain.No),
	}

	first := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
	second := Aggregate(items, domain.AUTOSOMAL_DOMINANT, domain.ZygosityNone, "")
	assert.Equal(t, first, second)
}

// Package score implements the SOPv8 point system: the static score table,
// the per-evidence score derivation rules, and per-proband aggregation.
package score

// Entry is one row of the SOP score table.
type Entry struct {
	DefaultScore float64
	ScoreRange   []float64
	// UpperLimit caps the per-proband total for case-level evidence.
	// Experimental categories have no upper limit.
	UpperLimit *float64
	MaxScore   float64
}

func limit(v float64) *float64 { return &v }

var (
	caseRangeShort = []float64{0, 0.1, 0.25, 0.5, 1, 1.5}
	caseRangeLong  = []float64{0, 0.1, 0.25, 0.5, 1, 1.5, 2, 2.5, 3}
	expRangeTwo    = []float64{0, 0.1, 0.25, 0.5, 1, 1.5, 2}
	expRangeFour   = []float64{0, 0.1, 0.25, 0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4}
)

// tables holds the full SOPv8 mapping from composite key to score rule. Keys
// for proband evidence are <moi>_<variantType>[_FUNCTIONAL_DATA][_IS_DE_NOVO];
// experimental evidence uses its category name directly.
var tables = map[string]Entry{
	"AUTOSOMAL_DOMINANT_OTHER_VARIANT_TYPE":                                {DefaultScore: 0.1, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"AUTOSOMAL_DOMINANT_OTHER_VARIANT_TYPE_FUNCTIONAL_DATA":                {DefaultScore: 0.5, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"AUTOSOMAL_DOMINANT_OTHER_VARIANT_TYPE_IS_DE_NOVO":                     {DefaultScore: 0.5, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"AUTOSOMAL_DOMINANT_OTHER_VARIANT_TYPE_FUNCTIONAL_DATA_IS_DE_NOVO":     {DefaultScore: 1.0, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"AUTOSOMAL_DOMINANT_PREDICTED_OR_PROVEN_NULL":                          {DefaultScore: 1.5, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"AUTOSOMAL_DOMINANT_PREDICTED_OR_PROVEN_NULL_FUNCTIONAL_DATA":          {DefaultScore: 2.0, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"AUTOSOMAL_DOMINANT_PREDICTED_OR_PROVEN_NULL_IS_DE_NOVO":               {DefaultScore: 2.0, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"AUTOSOMAL_DOMINANT_PREDICTED_OR_PROVEN_NULL_FUNCTIONAL_DATA_IS_DE_NOVO": {DefaultScore: 2.5, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},

	"MITOCHONDRIAL_OTHER_VARIANT_TYPE":                                {DefaultScore: 0.1, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"MITOCHONDRIAL_OTHER_VARIANT_TYPE_FUNCTIONAL_DATA":                {DefaultScore: 0.5, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"MITOCHONDRIAL_OTHER_VARIANT_TYPE_IS_DE_NOVO":                     {DefaultScore: 0.5, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"MITOCHONDRIAL_OTHER_VARIANT_TYPE_FUNCTIONAL_DATA_IS_DE_NOVO":     {DefaultScore: 1.0, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"MITOCHONDRIAL_PREDICTED_OR_PROVEN_NULL":                          {DefaultScore: 1.5, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"MITOCHONDRIAL_PREDICTED_OR_PROVEN_NULL_FUNCTIONAL_DATA":          {DefaultScore: 2.0, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"MITOCHONDRIAL_PREDICTED_OR_PROVEN_NULL_IS_DE_NOVO":               {DefaultScore: 2.0, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"MITOCHONDRIAL_PREDICTED_OR_PROVEN_NULL_FUNCTIONAL_DATA_IS_DE_NOVO": {DefaultScore: 2.5, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},

	"X_LINKED_OTHER_VARIANT_TYPE":                                {DefaultScore: 0.1, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"X_LINKED_OTHER_VARIANT_TYPE_FUNCTIONAL_DATA":                {DefaultScore: 0.5, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"X_LINKED_OTHER_VARIANT_TYPE_IS_DE_NOVO":                     {DefaultScore: 0.5, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"X_LINKED_OTHER_VARIANT_TYPE_FUNCTIONAL_DATA_IS_DE_NOVO":     {DefaultScore: 1.0, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"X_LINKED_PREDICTED_OR_PROVEN_NULL":                          {DefaultScore: 1.5, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"X_LINKED_PREDICTED_OR_PROVEN_NULL_FUNCTIONAL_DATA":          {DefaultScore: 2.0, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"X_LINKED_PREDICTED_OR_PROVEN_NULL_IS_DE_NOVO":               {DefaultScore: 2.0, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"X_LINKED_PREDICTED_OR_PROVEN_NULL_FUNCTIONAL_DATA_IS_DE_NOVO": {DefaultScore: 2.5, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},

	"AUTOSOMAL_RECESSIVE_OTHER_VARIANT_TYPE":                                {DefaultScore: 0.1, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"AUTOSOMAL_RECESSIVE_OTHER_VARIANT_TYPE_FUNCTIONAL_DATA":                {DefaultScore: 0.5, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"AUTOSOMAL_RECESSIVE_OTHER_VARIANT_TYPE_IS_DE_NOVO":                     {DefaultScore: 0.5, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"AUTOSOMAL_RECESSIVE_OTHER_VARIANT_TYPE_FUNCTIONAL_DATA_IS_DE_NOVO":     {DefaultScore: 1.0, ScoreRange: caseRangeShort, UpperLimit: limit(1.5), MaxScore: 12},
	"AUTOSOMAL_RECESSIVE_PREDICTED_OR_PROVEN_NULL":                          {DefaultScore: 1.5, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"AUTOSOMAL_RECESSIVE_PREDICTED_OR_PROVEN_NULL_FUNCTIONAL_DATA":          {DefaultScore: 2.0, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"AUTOSOMAL_RECESSIVE_PREDICTED_OR_PROVEN_NULL_IS_DE_NOVO":               {DefaultScore: 2.0, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},
	"AUTOSOMAL_RECESSIVE_PREDICTED_OR_PROVEN_NULL_FUNCTIONAL_DATA_IS_DE_NOVO": {DefaultScore: 2.5, ScoreRange: caseRangeLong, UpperLimit: limit(3.0), MaxScore: 12},

	"FUNCTION_BIOCHEMICAL_FUNCTION":           {DefaultScore: 0.5, ScoreRange: expRangeTwo, MaxScore: 2},
	"FUNCTION_PROTEIN_INTERACTIONS":           {DefaultScore: 0.5, ScoreRange: expRangeTwo, MaxScore: 2},
	"FUNCTION_EXPRESSION":                     {DefaultScore: 0.5, ScoreRange: expRangeTwo, MaxScore: 2},
	"FUNCTIONAL_ALTERATION_PATIENT_CELLS":     {DefaultScore: 1, ScoreRange: expRangeTwo, MaxScore: 2},
	"FUNCTIONAL_ALTERATION_NON_PATIENT_CELLS": {DefaultScore: 0.5, ScoreRange: []float64{0, 0.1, 0.25, 0.5, 1}, MaxScore: 2},
	"MODEL_SYSTEMS_NON_HUMAN_MODEL_ORGANISM":  {DefaultScore: 2, ScoreRange: expRangeFour, MaxScore: 4},
	"MODEL_SYSTEMS_CELL_CULTURE_MODEL":        {DefaultScore: 1, ScoreRange: expRangeTwo, MaxScore: 4},
	"RESCUE_PATIENT_CELLS":                    {DefaultScore: 1, ScoreRange: expRangeTwo, MaxScore: 4},
	"RESCUE_CELL_CULTURE_MODEL":               {DefaultScore: 1, ScoreRange: expRangeTwo, MaxScore: 4},
	"RESCUE_NON_HUMAN_MODEL_ORGANISM":         {DefaultScore: 2, ScoreRange: expRangeFour, MaxScore: 4},
	"RESCUE_HUMAN_MODEL":                      {DefaultScore: 2, ScoreRange: expRangeFour, MaxScore: 4},
}

// Lookup returns the score rule for key. A miss is not an error: it means no
// scoring rule is defined for that combination.
func Lookup(key string) (Entry, bool) {
	e, ok := tables[key]
	return e, ok
}

// Keys returns every defined score-table key.
func Keys() []string {
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	return keys
}

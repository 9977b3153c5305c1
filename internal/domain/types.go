// Package domain contains core business entities and types for gene-disease
// curation under the ClinGen gene-disease validity SOP (v8 point system).
//
// Reference: Strande et al. (2017) Evaluating the Clinical Validity of
// Gene-Disease Associations. Am J Hum Genet. 100(6):895-906.
package domain

// MOICategory is the resolved mode-of-inheritance category used as the first
// half of a score-table key.
type MOICategory string

const (
	AUTOSOMAL_DOMINANT  MOICategory = "AUTOSOMAL_DOMINANT"
	AUTOSOMAL_RECESSIVE MOICategory = "AUTOSOMAL_RECESSIVE"
	X_LINKED            MOICategory = "X_LINKED"
	MITOCHONDRIAL       MOICategory = "MITOCHONDRIAL"
	SEMIDOMINANT        MOICategory = "SEMIDOMINANT"
	// MOINone means the mode of inheritance has no scoring rule
	// (e.g. codominant, unknown).
	MOINone MOICategory = ""
)

// VariantType classifies the scored variant for the proband point system.
type VariantType string

const (
	PREDICTED_OR_PROVEN_NULL VariantType = "PREDICTED_OR_PROVEN_NULL"
	OTHER_VARIANT_TYPE       VariantType = "OTHER_VARIANT_TYPE"
	VariantTypeNone          VariantType = ""
)

// TriState is a Yes/No/Unknown user selection; empty means unanswered.
type TriState string

const (
	Yes     TriState = "Yes"
	No      TriState = "No"
	Unknown TriState = "Unknown"
)

// Zygosity is the recessive-zygosity selection on a proband.
type Zygosity string

const (
	Homozygous   Zygosity = "Homozygous"
	Heterozygous Zygosity = "Heterozygous"
	ZygosityNone Zygosity = ""
)

// Proband-is selections for semidominant gene-disease records. The UI stores
// these as free-form phrases; matching is by exact value or substring where
// noted in the scoring rules.
const (
	ProbandMonoallelicHet  = "Monoallelic heterozygous"
	ProbandHemizygous      = "Hemizygous"
	ProbandBiallelicHom    = "Biallelic homozygous"
	ProbandBiallelicCompHet = "Biallelic compound heterozygous"
)

// ScoreStatus is the curator's disposition of a single piece of evidence.
type ScoreStatus string

const (
	StatusScore       ScoreStatus = "Score"
	StatusReview      ScoreStatus = "Review"
	StatusSupports    ScoreStatus = "Supports"
	StatusContradicts ScoreStatus = "Contradicts"
	StatusNone        ScoreStatus = ""
)

// ExperimentalCategory is a flat score-table key for experimental evidence.
type ExperimentalCategory string

const (
	FUNCTION_BIOCHEMICAL_FUNCTION           ExperimentalCategory = "FUNCTION_BIOCHEMICAL_FUNCTION"
	FUNCTION_PROTEIN_INTERACTIONS           ExperimentalCategory = "FUNCTION_PROTEIN_INTERACTIONS"
	FUNCTION_EXPRESSION                     ExperimentalCategory = "FUNCTION_EXPRESSION"
	FUNCTIONAL_ALTERATION_PATIENT_CELLS     ExperimentalCategory = "FUNCTIONAL_ALTERATION_PATIENT_CELLS"
	FUNCTIONAL_ALTERATION_NON_PATIENT_CELLS ExperimentalCategory = "FUNCTIONAL_ALTERATION_NON_PATIENT_CELLS"
	MODEL_SYSTEMS_NON_HUMAN_MODEL_ORGANISM  ExperimentalCategory = "MODEL_SYSTEMS_NON_HUMAN_MODEL_ORGANISM"
	MODEL_SYSTEMS_CELL_CULTURE_MODEL        ExperimentalCategory = "MODEL_SYSTEMS_CELL_CULTURE_MODEL"
	RESCUE_PATIENT_CELLS                    ExperimentalCategory = "RESCUE_PATIENT_CELLS"
	RESCUE_CELL_CULTURE_MODEL               ExperimentalCategory = "RESCUE_CELL_CULTURE_MODEL"
	RESCUE_NON_HUMAN_MODEL_ORGANISM         ExperimentalCategory = "RESCUE_NON_HUMAN_MODEL_ORGANISM"
	RESCUE_HUMAN_MODEL                      ExperimentalCategory = "RESCUE_HUMAN_MODEL"
)

// CurationType identifies the kind of curation record being transferred.
type CurationType string

const (
	CurationGDM            CurationType = "gdm"
	CurationInterpretation CurationType = "interpretation"
)

// ContributorType identifies how the transfer source owners are named.
type ContributorType string

const (
	ContributorIndividual  ContributorType = "individual"
	ContributorAffiliation ContributorType = "affiliation"
)

// NoAffiliation is the sentinel destination meaning "transfer to individual
// ownership / remove affiliation".
const NoAffiliation = "0"

// IsValid reports whether the MOI category is one of the scorable constants.
func (m MOICategory) IsValid() bool {
	switch m {
	case AUTOSOMAL_DOMINANT, AUTOSOMAL_RECESSIVE, X_LINKED, MITOCHONDRIAL, SEMIDOMINANT:
		return true
	default:
		return false
	}
}

// IsValid reports whether the variant type participates in score derivation.
func (vt VariantType) IsValid() bool {
	switch vt {
	case PREDICTED_OR_PROVEN_NULL, OTHER_VARIANT_TYPE:
		return true
	default:
		return false
	}
}

// IsValid reports whether the curation type is recognized.
func (ct CurationType) IsValid() bool {
	return ct == CurationGDM || ct == CurationInterpretation
}

// IsValid reports whether the contributor type is recognized.
func (ct ContributorType) IsValid() bool {
	return ct == ContributorIndividual || ct == ContributorAffiliation
}

func (m MOICategory) String() string          { return string(m) }
func (vt VariantType) String() string         { return string(vt) }
func (ss ScoreStatus) String() string         { return string(ss) }
func (ct CurationType) String() string        { return string(ct) }
func (ct ContributorType) String() string     { return string(ct) }
func (ec ExperimentalCategory) String() string { return string(ec) }

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserRef identifies the user who submitted an object. The upstream data
// service serializes submitted_by either as a bare PK string or as a full user
// object; both forms normalize to UserRef at the JSON boundary so the rules
// engine never branches on shape.
type UserRef struct {
	PK    string `json:"PK"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// UnmarshalJSON accepts either "user-pk" or {"PK": "user-pk", ...}.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*u = UserRef{}
		return nil
	}
	if trimmed[0] == '"' {
		var pk string
		if err := json.Unmarshal(trimmed, &pk); err != nil {
			return fmt.Errorf("unmarshaling submitted_by PK: %w", err)
		}
		*u = UserRef{PK: pk}
		return nil
	}
	type userRef UserRef
	var full userRef
	if err := json.Unmarshal(trimmed, &full); err != nil {
		return fmt.Errorf("unmarshaling submitted_by object: %w", err)
	}
	*u = UserRef(full)
	return nil
}

// IsZero reports whether the reference carries no identity.
func (u UserRef) IsZero() bool { return u.PK == "" }

// CaseFacts are the case-level inputs that determine a proband variant score.
type CaseFacts struct {
	ModeOfInheritance      string      `json:"modeOfInheritance"`
	ProbandIs              string      `json:"probandIs,omitempty"`
	VariantType            VariantType `json:"variantType,omitempty"`
	DeNovo                 TriState    `json:"deNovo,omitempty"`
	MaternityPaternityConfirmed TriState `json:"maternityPaternityConfirmed,omitempty"`
	FunctionalDataSupport  TriState    `json:"functionalDataSupport,omitempty"`
	FunctionalDataExplanation string   `json:"functionalDataExplanation,omitempty"`
	RecessiveZygosity      Zygosity    `json:"recessiveZygosity,omitempty"`
}

// ScoreComplete reports whether enough facts are present for the score table
// key to be derivable. Score entry stays disabled in the UI until this holds.
func (f CaseFacts) ScoreComplete() bool {
	if !f.VariantType.IsValid() {
		return false
	}
	switch f.DeNovo {
	case No, Unknown:
	case Yes:
		if f.MaternityPaternityConfirmed == "" {
			return false
		}
	default:
		return false
	}
	switch f.FunctionalDataSupport {
	case No:
	case Yes:
		if strings.TrimSpace(f.FunctionalDataExplanation) == "" {
			return false
		}
	default:
		return false
	}
	return true
}

// VariantScore is one scored piece of proband evidence. CalculatedScore is
// the SOP default; Score is the curator's optional adjustment.
type VariantScore struct {
	PK                    string      `json:"PK"`
	ItemType              string      `json:"item_type"`
	ScoreStatus           ScoreStatus `json:"scoreStatus"`
	CalculatedScore       *float64    `json:"calculatedScore,omitempty"`
	Score                 *float64    `json:"score,omitempty"`
	ScoreExplanation      string      `json:"scoreExplanation,omitempty"`
	VariantType           VariantType `json:"variantType,omitempty"`
	FunctionalDataSupport TriState    `json:"functionalDataSupport,omitempty"`
	DeNovo                TriState    `json:"deNovo,omitempty"`
	SubmittedBy           UserRef     `json:"submitted_by"`
	Affiliation           string      `json:"affiliation,omitempty"`
	DateCreated           string      `json:"date_created,omitempty"`
	LastModified          string      `json:"last_modified,omitempty"`
}

// Evidence graph node types. Every node carries the identity fields needed by
// the transfer engine; payload fields not needed for ownership are dropped at
// the loading boundary.

// Individual is a proband or family member with attached scores.
type Individual struct {
	PK            string         `json:"PK"`
	ItemType      string         `json:"item_type"`
	SubmittedBy   UserRef        `json:"submitted_by"`
	Affiliation   string         `json:"affiliation,omitempty"`
	DateCreated   string         `json:"date_created,omitempty"`
	LastModified  string         `json:"last_modified,omitempty"`
	Scores        []VariantScore `json:"scores,omitempty"`
	VariantScores []VariantScore `json:"variantScores,omitempty"`
}

// Family groups individuals with segregation evidence.
type Family struct {
	PK                 string       `json:"PK"`
	ItemType           string       `json:"item_type"`
	SubmittedBy        UserRef      `json:"submitted_by"`
	Affiliation        string       `json:"affiliation,omitempty"`
	DateCreated        string       `json:"date_created,omitempty"`
	LastModified       string       `json:"last_modified,omitempty"`
	IndividualIncluded []Individual `json:"individualIncluded,omitempty"`
}

// Group is a cohort of families and individuals.
type Group struct {
	PK                 string       `json:"PK"`
	ItemType           string       `json:"item_type"`
	SubmittedBy        UserRef      `json:"submitted_by"`
	Affiliation        string       `json:"affiliation,omitempty"`
	DateCreated        string       `json:"date_created,omitempty"`
	LastModified       string       `json:"last_modified,omitempty"`
	FamilyIncluded     []Family     `json:"familyIncluded,omitempty"`
	IndividualIncluded []Individual `json:"individualIncluded,omitempty"`
}

// Experimental is non-case experimental evidence with attached scores.
type Experimental struct {
	PK           string         `json:"PK"`
	ItemType     string         `json:"item_type"`
	SubmittedBy  UserRef        `json:"submitted_by"`
	Affiliation  string         `json:"affiliation,omitempty"`
	DateCreated  string         `json:"date_created,omitempty"`
	LastModified string         `json:"last_modified,omitempty"`
	Scores       []VariantScore `json:"scores,omitempty"`
}

// Cohort is a case or control arm of a case-control study.
type Cohort struct {
	PK           string  `json:"PK"`
	ItemType     string  `json:"item_type"`
	SubmittedBy  UserRef `json:"submitted_by"`
	Affiliation  string  `json:"affiliation,omitempty"`
	DateCreated  string  `json:"date_created,omitempty"`
	LastModified string  `json:"last_modified,omitempty"`
}

// CaseControl is a case-control study with its two cohorts and scores.
type CaseControl struct {
	PK            string         `json:"PK"`
	ItemType      string         `json:"item_type"`
	SubmittedBy   UserRef        `json:"submitted_by"`
	Affiliation   string         `json:"affiliation,omitempty"`
	DateCreated   string         `json:"date_created,omitempty"`
	LastModified  string         `json:"last_modified,omitempty"`
	CaseCohort    *Cohort        `json:"caseCohort,omitempty"`
	ControlCohort *Cohort        `json:"controlCohort,omitempty"`
	Scores        []VariantScore `json:"scores,omitempty"`
}

// Annotation is a per-publication evidence container under a GDM. Annotations
// carry no submitted_by, only an affiliation.
type Annotation struct {
	PK                string         `json:"PK"`
	ItemType          string         `json:"item_type"`
	Affiliation       string         `json:"affiliation,omitempty"`
	DateCreated       string         `json:"date_created,omitempty"`
	LastModified      string         `json:"last_modified,omitempty"`
	Groups            []Group        `json:"groups,omitempty"`
	Families          []Family       `json:"families,omitempty"`
	Individuals       []Individual   `json:"individuals,omitempty"`
	ExperimentalData  []Experimental `json:"experimentalData,omitempty"`
	CaseControlStudies []CaseControl `json:"caseControlStudies,omitempty"`
}

// ProvisionalClassification is a top-level classification entry on a GDM.
type ProvisionalClassification struct {
	PK           string  `json:"PK"`
	ItemType     string  `json:"item_type"`
	SubmittedBy  UserRef `json:"submitted_by"`
	Affiliation  string  `json:"affiliation,omitempty"`
	DateCreated  string  `json:"date_created,omitempty"`
	LastModified string  `json:"last_modified,omitempty"`
}

// Pathogenicity is a variant-pathogenicity assessment linked to a GDM.
type Pathogenicity struct {
	PK           string  `json:"PK"`
	ItemType     string  `json:"item_type"`
	SubmittedBy  UserRef `json:"submitted_by"`
	Affiliation  string  `json:"affiliation,omitempty"`
	DateCreated  string  `json:"date_created,omitempty"`
	LastModified string  `json:"last_modified,omitempty"`
}

// GDM is a gene-disease record: the root aggregate of a gene-central curation.
type GDM struct {
	PK                         string                      `json:"PK"`
	ItemType                   string                      `json:"item_type"`
	SubmittedBy                UserRef                     `json:"submitted_by"`
	Affiliation                string                      `json:"affiliation,omitempty"`
	DateCreated                string                      `json:"date_created,omitempty"`
	LastModified               string                      `json:"last_modified,omitempty"`
	ModeInheritance            string                      `json:"modeInheritance,omitempty"`
	Annotations                []Annotation                `json:"annotations,omitempty"`
	ProvisionalClassifications []ProvisionalClassification `json:"provisionalClassifications,omitempty"`
	VariantPathogenicity       []Pathogenicity             `json:"variantPathogenicity,omitempty"`
}

// Evaluation is a criterion evaluation under a variant interpretation.
type Evaluation struct {
	PK           string  `json:"PK"`
	ItemType     string  `json:"item_type"`
	SubmittedBy  UserRef `json:"submitted_by"`
	Affiliation  string  `json:"affiliation,omitempty"`
	DateCreated  string  `json:"date_created,omitempty"`
	LastModified string  `json:"last_modified,omitempty"`
}

// CuratedEvidence is a curator-attached evidence record under an interpretation.
type CuratedEvidence struct {
	PK           string  `json:"PK"`
	ItemType     string  `json:"item_type"`
	SubmittedBy  UserRef `json:"submitted_by"`
	Affiliation  string  `json:"affiliation,omitempty"`
	DateCreated  string  `json:"date_created,omitempty"`
	LastModified string  `json:"last_modified,omitempty"`
}

// ProvisionalVariant is embedded classification state on an interpretation.
// It is not a separately persisted object; its affiliation travels inside the
// root interpretation update.
type ProvisionalVariant map[string]any

// Interpretation is a variant-interpretation record: the root aggregate of a
// variant-central curation.
type Interpretation struct {
	PK                 string             `json:"PK"`
	ItemType           string             `json:"item_type"`
	SubmittedBy        UserRef            `json:"submitted_by"`
	Affiliation        string             `json:"affiliation,omitempty"`
	DateCreated        string             `json:"date_created,omitempty"`
	LastModified       string             `json:"last_modified,omitempty"`
	Variant            string             `json:"variant,omitempty"`
	Evaluations        []Evaluation       `json:"evaluations,omitempty"`
	CuratedEvidences   []CuratedEvidence  `json:"curated_evidence_list,omitempty"`
	ProvisionalVariant ProvisionalVariant `json:"provisionalVariant,omitempty"`
}

// CurationRecord is the polymorphic root handed to the transfer engine.
// Exactly one of GDM and Interpretation is set, matching Type.
type CurationRecord struct {
	Type           CurationType
	GDM            *GDM
	Interpretation *Interpretation
}

// TransferRequest is a fully-specified, not-yet-resolved transfer operation.
type TransferRequest struct {
	CurationType           CurationType    `json:"curationType"`
	RecordPK               string          `json:"recordPK"`
	ContributorType        ContributorType `json:"contributorType"`
	ContributorIdentifiers []string        `json:"contributorIdentifiers"`
	DestinationAffiliation string          `json:"destinationAffiliationId"`
	ActingUserPK           string          `json:"actingUserPK,omitempty"`
}

// Validate checks the request is well-formed before any I/O happens.
func (r *TransferRequest) Validate() error {
	if !r.CurationType.IsValid() {
		return NewValidationError("curationType", "must be gdm or interpretation", string(r.CurationType))
	}
	if strings.TrimSpace(r.RecordPK) == "" {
		return NewValidationError("recordPK", "record PK is required", r.RecordPK)
	}
	if !r.ContributorType.IsValid() {
		return NewValidationError("contributorType", "must be individual or affiliation", string(r.ContributorType))
	}
	if len(r.ContributorIdentifiers) == 0 {
		if r.ContributorType == ContributorIndividual {
			return NewValidationError("contributorIdentifiers", "contributor email(s) required", nil)
		}
		return NewValidationError("contributorIdentifiers", "affiliation id(s) required", nil)
	}
	if strings.TrimSpace(r.DestinationAffiliation) == "" {
		return NewValidationError("destinationAffiliationId", "new affiliation id is required", r.DestinationAffiliation)
	}
	return nil
}

// ObjectUpdate is the identity-only projection of one object to reassign.
// NewAffiliation nil means the affiliation is cleared (destination "0").
type ObjectUpdate struct {
	PK             string             `json:"PK"`
	ItemType       string             `json:"item_type"`
	SubmittedBy    UserRef            `json:"submitted_by,omitempty"`
	DateCreated    string             `json:"date_created,omitempty"`
	LastModified   string             `json:"last_modified,omitempty"`
	NewAffiliation *string            `json:"affiliation"`
	ModifiedBy     string             `json:"modified_by,omitempty"`
	// ProvisionalVariant rides along only on an interpretation root update.
	ProvisionalVariant ProvisionalVariant `json:"provisionalVariant,omitempty"`
}

// TransferPlan is the validated output of the planning stages: the flattened
// update list plus the resolved contributor set.
type TransferPlan struct {
	Request        TransferRequest
	ContributorPKs []string
	Updates        []ObjectUpdate
}

// TransferResult reports the apply stage outcome. UpdatedPKs and FailedPKs
// partition the attempted updates; a nonempty FailedPKs with nonempty
// UpdatedPKs is a partial success.
type TransferResult struct {
	UpdatedPKs []string `json:"updatedPKs"`
	FailedPKs  []string `json:"failedPKs,omitempty"`
}

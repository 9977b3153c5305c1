// Package transfer implements the curation ownership-transfer engine: a
// staged pipeline that loads a curation record graph, resolves and validates
// the requested contributors, detects duplicate-ownership conflicts, and
// produces the flat set of object updates that reassign the record.
package transfer

import (
	"github.com/clingen-curation-server/internal/domain"
)

// flatObject is the identity-only projection of one graph node. Payload
// fields never travel past the flattening boundary.
type flatObject struct {
	PK           string
	ItemType     string
	SubmittedBy  domain.UserRef
	Affiliation  string
	DateCreated  string
	LastModified string
	// ProvisionalVariant is carried only on an interpretation root; it is
	// embedded state, not a separately persisted object.
	ProvisionalVariant domain.ProvisionalVariant
}

// flattenGDM walks the full gene-disease record graph and collects every
// node: annotations with their groups, families, individuals, experimental
// data and case-control studies (plus cohorts), all score objects, the
// top-level classifications and pathogenicities, and the record itself last.
func flattenGDM(gdm *domain.GDM) []flatObject {
	var out []flatObject

	for i := range gdm.Annotations {
		ann := &gdm.Annotations[i]
		out = append(out, flatObject{
			PK:           ann.PK,
			ItemType:     ann.ItemType,
			Affiliation:  ann.Affiliation,
			DateCreated:  ann.DateCreated,
			LastModified: ann.LastModified,
		})

		for j := range ann.Groups {
			group := &ann.Groups[j]
			out = append(out, projectGroup(group))
			out = appendFamilies(out, group.FamilyIncluded)
			out = appendIndividuals(out, group.IndividualIncluded)
		}

		out = appendFamilies(out, ann.Families)
		out = appendIndividuals(out, ann.Individuals)

		for j := range ann.ExperimentalData {
			exp := &ann.ExperimentalData[j]
			out = append(out, flatObject{
				PK:           exp.PK,
				ItemType:     exp.ItemType,
				SubmittedBy:  exp.SubmittedBy,
				Affiliation:  exp.Affiliation,
				DateCreated:  exp.DateCreated,
				LastModified: exp.LastModified,
			})
			out = appendScores(out, exp.Scores)
		}

		for j := range ann.CaseControlStudies {
			cc := &ann.CaseControlStudies[j]
			out = append(out, flatObject{
				PK:           cc.PK,
				ItemType:     cc.ItemType,
				SubmittedBy:  cc.SubmittedBy,
				Affiliation:  cc.Affiliation,
				DateCreated:  cc.DateCreated,
				LastModified: cc.LastModified,
			})
			if cc.CaseCohort != nil {
				out = append(out, projectCohort(cc.CaseCohort))
			}
			if cc.ControlCohort != nil {
				out = append(out, projectCohort(cc.ControlCohort))
			}
			out = appendScores(out, cc.Scores)
		}
	}

	for i := range gdm.ProvisionalClassifications {
		pc := &gdm.ProvisionalClassifications[i]
		out = append(out, flatObject{
			PK:           pc.PK,
			ItemType:     pc.ItemType,
			SubmittedBy:  pc.SubmittedBy,
			Affiliation:  pc.Affiliation,
			DateCreated:  pc.DateCreated,
			LastModified: pc.LastModified,
		})
	}

	for i := range gdm.VariantPathogenicity {
		vp := &gdm.VariantPathogenicity[i]
		out = append(out, flatObject{
			PK:           vp.PK,
			ItemType:     vp.ItemType,
			SubmittedBy:  vp.SubmittedBy,
			Affiliation:  vp.Affiliation,
			DateCreated:  vp.DateCreated,
			LastModified: vp.LastModified,
		})
	}

	out = append(out, flatObject{
		PK:           gdm.PK,
		ItemType:     gdm.ItemType,
		SubmittedBy:  gdm.SubmittedBy,
		Affiliation:  gdm.Affiliation,
		DateCreated:  gdm.DateCreated,
		LastModified: gdm.LastModified,
	})

	return dedupeByPK(out)
}

// flattenInterpretation collects the nested evaluation and curated-evidence
// records. The root itself is appended later by the engine, after filtering,
// because it carries the embedded provisionalVariant rewrite.
func flattenInterpretation(interp *domain.Interpretation) []flatObject {
	var out []flatObject

	for i := range interp.Evaluations {
		ev := &interp.Evaluations[i]
		out = append(out, flatObject{
			PK:           ev.PK,
			ItemType:     ev.ItemType,
			SubmittedBy:  ev.SubmittedBy,
			Affiliation:  ev.Affiliation,
			DateCreated:  ev.DateCreated,
			LastModified: ev.LastModified,
		})
	}

	for i := range interp.CuratedEvidences {
		ce := &interp.CuratedEvidences[i]
		out = append(out, flatObject{
			PK:           ce.PK,
			ItemType:     ce.ItemType,
			SubmittedBy:  ce.SubmittedBy,
			Affiliation:  ce.Affiliation,
			DateCreated:  ce.DateCreated,
			LastModified: ce.LastModified,
		})
	}

	return dedupeByPK(out)
}

func appendFamilies(out []flatObject, families []domain.Family) []flatObject {
	for i := range families {
		fam := &families[i]
		out = append(out, flatObject{
			PK:           fam.PK,
			ItemType:     fam.ItemType,
			SubmittedBy:  fam.SubmittedBy,
			Affiliation:  fam.Affiliation,
			DateCreated:  fam.DateCreated,
			LastModified: fam.LastModified,
		})
		out = appendIndividuals(out, fam.IndividualIncluded)
	}
	return out
}

func appendIndividuals(out []flatObject, individuals []domain.Individual) []flatObject {
	for i := range individuals {
		ind := &individuals[i]
		out = append(out, flatObject{
			PK:           ind.PK,
			ItemType:     ind.ItemType,
			SubmittedBy:  ind.SubmittedBy,
			Affiliation:  ind.Affiliation,
			DateCreated:  ind.DateCreated,
			LastModified: ind.LastModified,
		})
		out = appendScores(out, ind.Scores)
		out = appendScores(out, ind.VariantScores)
	}
	return out
}

func appendScores(out []flatObject, scores []domain.VariantScore) []flatObject {
	for i := range scores {
		sc := &scores[i]
		out = append(out, flatObject{
			PK:           sc.PK,
			ItemType:     sc.ItemType,
			SubmittedBy:  sc.SubmittedBy,
			Affiliation:  sc.Affiliation,
			DateCreated:  sc.DateCreated,
			LastModified: sc.LastModified,
		})
	}
	return out
}

func projectGroup(g *domain.Group) flatObject {
	return flatObject{
		PK:           g.PK,
		ItemType:     g.ItemType,
		SubmittedBy:  g.SubmittedBy,
		Affiliation:  g.Affiliation,
		DateCreated:  g.DateCreated,
		LastModified: g.LastModified,
	}
}

func projectCohort(c *domain.Cohort) flatObject {
	return flatObject{
		PK:           c.PK,
		ItemType:     c.ItemType,
		SubmittedBy:  c.SubmittedBy,
		Affiliation:  c.Affiliation,
		DateCreated:  c.DateCreated,
		LastModified: c.LastModified,
	}
}

// dedupeByPK keeps the first occurrence of each PK, preserving order. A
// well-formed graph has no shared nodes, but the update list must never carry
// the same PK twice.
func dedupeByPK(objs []flatObject) []flatObject {
	seen := make(map[string]struct{}, len(objs))
	out := objs[:0]
	for _, obj := range objs {
		if _, ok := seen[obj.PK]; ok {
			continue
		}
		seen[obj.PK] = struct{}{}
		out = append(out, obj)
	}
	return out
}

// filterByContributors keeps the objects that belong to the requested
// contributors. Annotations carry no submitter identity and are always kept
// on individual transfers.
func filterByContributors(objs []flatObject, contributorType domain.ContributorType, contributorPKs []string, isGDM bool) []flatObject {
	pks := make(map[string]struct{}, len(contributorPKs))
	for _, pk := range contributorPKs {
		pks[pk] = struct{}{}
	}

	var out []flatObject
	for _, obj := range objs {
		switch contributorType {
		case domain.ContributorIndividual:
			if isGDM && obj.ItemType == "annotation" {
				out = append(out, obj)
				continue
			}
			if _, ok := pks[obj.SubmittedBy.PK]; ok {
				out = append(out, obj)
			}
		case domain.ContributorAffiliation:
			if _, ok := pks[obj.Affiliation]; ok {
				out = append(out, obj)
			}
		}
	}
	return out
}

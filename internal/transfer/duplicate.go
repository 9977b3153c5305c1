package transfer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/clingen-curation-server/internal/domain"
)

// checkGDMDuplicates rejects a transfer that would leave two top-level
// classifications attributable to the same destination owner.
//
// fromSet is the classifications being moved: entries created by the named
// contributors (individual transfers also exclude entries already owned by
// the destination, which would not move). toSet is the classifications the
// destination already owns. A fromSet with more than one entry, or a nonempty
// fromSet meeting a nonempty toSet, is a conflict.
func checkGDMDuplicates(gdm *domain.GDM, contributorType domain.ContributorType, contributorPKs []string, destination string) error {
	if len(gdm.ProvisionalClassifications) == 0 {
		return nil
	}

	pks := make(map[string]struct{}, len(contributorPKs))
	for _, pk := range contributorPKs {
		pks[pk] = struct{}{}
	}

	var fromSet []domain.ProvisionalClassification
	for _, pc := range gdm.ProvisionalClassifications {
		if contributorType == domain.ContributorIndividual {
			if _, ok := pks[pc.SubmittedBy.PK]; ok && (pc.Affiliation == "" || pc.Affiliation != destination) {
				fromSet = append(fromSet, pc)
			}
		} else {
			if _, ok := pks[pc.Affiliation]; ok {
				fromSet = append(fromSet, pc)
			}
		}
	}
	if len(fromSet) == 0 {
		return nil
	}

	var toSet []domain.ProvisionalClassification
	if destination == domain.NoAffiliation {
		if contributorType == domain.ContributorIndividual {
			// Moving to individual ownership: each creator in the
			// moved set must end up with exactly one classification.
			seen := make(map[string]struct{}, len(fromSet))
			for _, pc := range fromSet {
				if _, ok := seen[pc.SubmittedBy.PK]; ok {
					return domain.NewDuplicateConflictError(
						"Duplicated classification associated with new Affiliation ID are found.")
				}
				seen[pc.SubmittedBy.PK] = struct{}{}
			}
		} else {
			creator := fromSet[0].SubmittedBy.PK
			for _, pc := range gdm.ProvisionalClassifications {
				if pc.SubmittedBy.PK == creator && pc.Affiliation == "" {
					toSet = append(toSet, pc)
				}
			}
		}
	} else {
		for _, pc := range gdm.ProvisionalClassifications {
			if pc.Affiliation == destination {
				toSet = append(toSet, pc)
			}
		}
	}

	if len(fromSet) > 1 || len(toSet) > 0 {
		return domain.NewDuplicateConflictError(
			"Duplicated classification associated with new Affiliation ID are found.")
	}
	return nil
}

// checkInterpretationDuplicates runs the live query for an existing
// interpretation on the same variant already belonging to the destination
// owner. A query failure does not block the transfer; it is logged and the
// transfer proceeds (the destination-side store enforces its own constraint).
func checkInterpretationDuplicates(ctx context.Context, logger *logrus.Logger, finder domain.InterpretationFinder, interp *domain.Interpretation, destination string) error {
	filter := domain.InterpretationFilter{Variant: interp.Variant}
	reason := "An interpretation associated with New Affiliation ID already exists for this variant."
	if destination == domain.NoAffiliation {
		filter.SubmittedBy = interp.SubmittedBy.PK
		reason = "An interpretation associated with transfer from individual already exists for this variant."
	} else {
		filter.Affiliation = destination
	}

	found, err := finder.FindInterpretations(ctx, filter)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"variant":     interp.Variant,
			"destination": destination,
		}).Warn("Duplicate-interpretation query failed, allowing transfer")
		return nil
	}
	if len(found) > 0 {
		return domain.NewDuplicateConflictError(reason)
	}
	return nil
}

// checkScoreDuplicates walks every evidence node of the record graph that can
// carry multiple scores and rejects the transfer when reassignment would
// leave two scores on one evidence item attributable to the same owner. This
// validator is feature-flagged off by default; it was designed alongside the
// classification check but never enforced in production.
func checkScoreDuplicates(gdm *domain.GDM, contributorType domain.ContributorType, contributorPKs []string, destination string) error {
	conflict := domain.NewDuplicateConflictError(
		"Duplicated Scores associated with new Affiliation ID in same evidence(s) are found.")

	check := func(scores []domain.VariantScore) error {
		if len(scores) > 1 && !noDupScore(scores, contributorType, contributorPKs, destination) {
			return conflict
		}
		return nil
	}
	checkIndividuals := func(individuals []domain.Individual) error {
		for _, ind := range individuals {
			if err := check(ind.Scores); err != nil {
				return err
			}
		}
		return nil
	}

	for _, ann := range gdm.Annotations {
		for _, group := range ann.Groups {
			for _, fam := range group.FamilyIncluded {
				if err := checkIndividuals(fam.IndividualIncluded); err != nil {
					return err
				}
			}
			if err := checkIndividuals(group.IndividualIncluded); err != nil {
				return err
			}
		}
		for _, fam := range ann.Families {
			if err := checkIndividuals(fam.IndividualIncluded); err != nil {
				return err
			}
		}
		if err := checkIndividuals(ann.Individuals); err != nil {
			return err
		}
		for _, exp := range ann.ExperimentalData {
			if err := check(exp.Scores); err != nil {
				return err
			}
		}
		for _, cc := range ann.CaseControlStudies {
			if err := check(cc.Scores); err != nil {
				return err
			}
		}
	}
	return nil
}

// noDupScore reports whether transferring the matching scores in one
// evidence item's score list leaves every owner with at most one score. The
// decision mirrors the classification check, applied per evidence item.
func noDupScore(scores []domain.VariantScore, contributorType domain.ContributorType, contributorPKs []string, destination string) bool {
	pks := make(map[string]struct{}, len(contributorPKs))
	for _, pk := range contributorPKs {
		pks[pk] = struct{}{}
	}

	var fromScores []domain.VariantScore
	for _, sc := range scores {
		if contributorType == domain.ContributorIndividual {
			if _, ok := pks[sc.SubmittedBy.PK]; ok && (sc.Affiliation == "" || sc.Affiliation != destination) {
				fromScores = append(fromScores, sc)
			}
		} else {
			if _, ok := pks[sc.Affiliation]; ok {
				fromScores = append(fromScores, sc)
			}
		}
	}
	if len(fromScores) == 0 {
		return true
	}

	var toScores []domain.VariantScore
	if destination == domain.NoAffiliation {
		if contributorType == domain.ContributorIndividual {
			seen := make(map[string]struct{}, len(fromScores))
			for _, sc := range fromScores {
				if _, ok := seen[sc.SubmittedBy.PK]; ok {
					return false
				}
				seen[sc.SubmittedBy.PK] = struct{}{}
			}
		} else {
			creator := fromScores[0].SubmittedBy.PK
			for _, sc := range scores {
				if sc.SubmittedBy.PK == creator && sc.Affiliation == "" {
					toScores = append(toScores, sc)
				}
			}
		}
	} else {
		for _, sc := range scores {
			if sc.Affiliation == destination {
				toScores = append(toScores, sc)
			}
		}
	}

	return len(fromScores) <= 1 && len(toScores) == 0
}

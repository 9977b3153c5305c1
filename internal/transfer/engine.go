package transfer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/clingen-curation-server/internal/domain"
)

const defaultApplyConcurrency = 8

// Engine moves a curation record and its nested evidence graph from one set
// of contributors to a destination affiliation (or to individual ownership).
// Planning is side-effect free; Apply persists the planned updates.
type Engine struct {
	logger *logrus.Logger
	users  domain.UserDirectory
	loader domain.CurationLoader
	finder domain.InterpretationFinder
	store  domain.ObjectStore
	config *domain.TransferConfig
}

// NewEngine creates a transfer engine wired to its external collaborators.
func NewEngine(
	logger *logrus.Logger,
	users domain.UserDirectory,
	loader domain.CurationLoader,
	finder domain.InterpretationFinder,
	store domain.ObjectStore,
	config *domain.TransferConfig,
) *Engine {
	return &Engine{
		logger: logger,
		users:  users,
		loader: loader,
		finder: finder,
		store:  store,
		config: config,
	}
}

// Plan runs the non-mutating stages of a transfer: load the record graph,
// resolve contributors, validate, detect duplicates, and flatten the graph
// into the update list. Nothing is persisted; a returned plan is ready for
// Apply.
func (e *Engine) Plan(ctx context.Context, req domain.TransferRequest) (*domain.TransferPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"curation_type":    req.CurationType,
		"record_pk":        req.RecordPK,
		"contributor_type": req.ContributorType,
		"destination":      req.DestinationAffiliation,
	}).Info("Planning curation transfer")

	record, err := e.loadRecord(ctx, req)
	if err != nil {
		return nil, err
	}

	contributorPKs, err := e.resolveContributors(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := validateOwnership(record, req.ContributorType, contributorPKs, req.DestinationAffiliation); err != nil {
		return nil, err
	}

	if err := e.detectDuplicates(ctx, record, req.ContributorType, contributorPKs, req.DestinationAffiliation); err != nil {
		return nil, err
	}

	updates := e.buildUpdates(record, req, contributorPKs)

	e.logger.WithFields(logrus.Fields{
		"record_pk":    req.RecordPK,
		"update_count": len(updates),
	}).Info("Transfer plan ready")

	return &domain.TransferPlan{
		Request:        req,
		ContributorPKs: contributorPKs,
		Updates:        updates,
	}, nil
}

// Apply persists every planned update. Updates target disjoint objects, so
// they are issued concurrently and joined before returning. Failures are not
// rolled back: a partial success reports the updated PKs alongside a
// PartialFailureError carrying the PKs and causes of the failures.
func (e *Engine) Apply(ctx context.Context, plan *domain.TransferPlan) (*domain.TransferResult, error) {
	if len(plan.Updates) == 0 {
		e.logger.WithField("record_pk", plan.Request.RecordPK).
			Warn("Transfer plan matched no objects, nothing to apply")
		return &domain.TransferResult{}, nil
	}

	concurrency := defaultApplyConcurrency
	if e.config != nil && e.config.ApplyConcurrency > 0 {
		concurrency = e.config.ApplyConcurrency
	}

	type outcome struct {
		pk  string
		err error
	}
	outcomes := make([]outcome, len(plan.Updates))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, update := range plan.Updates {
		g.Go(func() error {
			// Once issued, an update runs to completion; ctx is
			// passed through for transport-level deadlines only.
			outcomes[i] = outcome{pk: update.PK, err: e.store.UpdateObject(ctx, update)}
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.TransferResult{}
	var causes []error
	for _, o := range outcomes {
		if o.err != nil {
			result.FailedPKs = append(result.FailedPKs, o.pk)
			causes = append(causes, fmt.Errorf("updating object %s: %w", o.pk, o.err))
			continue
		}
		result.UpdatedPKs = append(result.UpdatedPKs, o.pk)
	}

	if len(result.FailedPKs) > 0 {
		e.logger.WithFields(logrus.Fields{
			"record_pk": plan.Request.RecordPK,
			"updated":   len(result.UpdatedPKs),
			"failed":    len(result.FailedPKs),
		}).Error("Transfer applied with failures")
		return result, &domain.PartialFailureError{
			UpdatedPKs: result.UpdatedPKs,
			FailedPKs:  result.FailedPKs,
			Causes:     causes,
		}
	}

	e.logger.WithFields(logrus.Fields{
		"record_pk": plan.Request.RecordPK,
		"updated":   len(result.UpdatedPKs),
	}).Info("Transfer applied")
	return result, nil
}

// Execute plans and applies a transfer in one call.
func (e *Engine) Execute(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	plan, err := e.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.Apply(ctx, plan)
}

func (e *Engine) loadRecord(ctx context.Context, req domain.TransferRequest) (*domain.CurationRecord, error) {
	switch req.CurationType {
	case domain.CurationGDM:
		gdm, err := e.loader.LoadGDM(ctx, req.RecordPK)
		if err != nil {
			return nil, domain.NewNotFoundError(fmt.Sprintf("GDM %s is not found. Error: %v", req.RecordPK, err))
		}
		return &domain.CurationRecord{Type: domain.CurationGDM, GDM: gdm}, nil
	case domain.CurationInterpretation:
		interp, err := e.loader.LoadInterpretation(ctx, req.RecordPK)
		if err != nil {
			return nil, domain.NewNotFoundError(fmt.Sprintf("Interpretation %s is not found. Error: %v", req.RecordPK, err))
		}
		return &domain.CurationRecord{Type: domain.CurationInterpretation, Interpretation: interp}, nil
	default:
		return nil, domain.NewValidationError("curationType", "must be gdm or interpretation", string(req.CurationType))
	}
}

// resolveContributors maps contributor emails to user PKs for individual
// transfers. Resolution is all-or-nothing: one unresolvable email fails the
// whole request. Affiliation identifiers pass through unchanged.
func (e *Engine) resolveContributors(ctx context.Context, req domain.TransferRequest) ([]string, error) {
	if req.ContributorType == domain.ContributorAffiliation {
		return req.ContributorIdentifiers, nil
	}

	pks := make([]string, 0, len(req.ContributorIdentifiers))
	for _, email := range req.ContributorIdentifiers {
		pk, err := e.users.LookupUserPKByEmail(ctx, email)
		if err != nil {
			return nil, domain.NewNotFoundError(
				fmt.Sprintf("Problem finding user UUID from user email - %s", email))
		}
		pks = append(pks, pk)
	}
	return pks, nil
}

// validateOwnership checks the request against the loaded record's current
// ownership. Every rejection reason is surfaced verbatim to the caller.
func validateOwnership(record *domain.CurationRecord, contributorType domain.ContributorType, contributorPKs []string, destination string) error {
	rootAffiliation, rootSubmitter := recordOwnership(record)

	switch contributorType {
	case domain.ContributorAffiliation:
		if len(contributorPKs) == 1 && contributorPKs[0] == destination {
			return domain.NewTransferError(domain.ErrCodeValidation,
				"Selected Affiliation Id for transfer should not be the same as new Affiliation Id.")
		}
		if rootAffiliation == "" {
			return domain.NewTransferError(domain.ErrCodeValidation,
				"Cannot transfer curation because it does not belong to any selected affiliation(s).")
		}
	case domain.ContributorIndividual:
		if rootAffiliation != "" {
			return domain.NewTransferError(domain.ErrCodeValidation,
				"Cannot transfer curation from an affiliation by selected individual user(s).")
		}
		found := false
		for _, pk := range contributorPKs {
			if pk == rootSubmitter {
				found = true
				break
			}
		}
		if !found {
			return domain.NewTransferError(domain.ErrCodeValidation,
				"Cannot transfer curation because it does not belong to any selected individual user(s).")
		}
	}
	return nil
}

func (e *Engine) detectDuplicates(ctx context.Context, record *domain.CurationRecord, contributorType domain.ContributorType, contributorPKs []string, destination string) error {
	switch record.Type {
	case domain.CurationGDM:
		if e.config != nil && e.config.CheckScoreDuplicates {
			if err := checkScoreDuplicates(record.GDM, contributorType, contributorPKs, destination); err != nil {
				return err
			}
		}
		return checkGDMDuplicates(record.GDM, contributorType, contributorPKs, destination)
	case domain.CurationInterpretation:
		return checkInterpretationDuplicates(ctx, e.logger, e.finder, record.Interpretation, destination)
	}
	return nil
}

// buildUpdates flattens the record graph, filters it down to the requested
// contributors' objects, and projects each into an update carrying the new
// affiliation and the acting user. For interpretations the root record is
// appended last with its embedded provisionalVariant rewritten: the
// affiliation sub-field is set to the destination, or deleted entirely (not
// nulled) when transferring to individual ownership.
func (e *Engine) buildUpdates(record *domain.CurationRecord, req domain.TransferRequest, contributorPKs []string) []domain.ObjectUpdate {
	var objects []flatObject
	switch record.Type {
	case domain.CurationGDM:
		objects = filterByContributors(flattenGDM(record.GDM), req.ContributorType, contributorPKs, true)
	case domain.CurationInterpretation:
		interp := record.Interpretation
		objects = filterByContributors(flattenInterpretation(interp), req.ContributorType, contributorPKs, false)

		if interp.ProvisionalVariant != nil {
			if req.DestinationAffiliation == domain.NoAffiliation {
				delete(interp.ProvisionalVariant, "affiliation")
			} else {
				interp.ProvisionalVariant["affiliation"] = req.DestinationAffiliation
			}
		}
		objects = append(objects, flatObject{
			PK:                 interp.PK,
			ItemType:           interp.ItemType,
			SubmittedBy:        interp.SubmittedBy,
			Affiliation:        interp.Affiliation,
			DateCreated:        interp.DateCreated,
			LastModified:       interp.LastModified,
			ProvisionalVariant: interp.ProvisionalVariant,
		})
	}

	var newAffiliation *string
	if req.DestinationAffiliation != domain.NoAffiliation {
		dest := req.DestinationAffiliation
		newAffiliation = &dest
	}

	updates := make([]domain.ObjectUpdate, 0, len(objects))
	for _, obj := range objects {
		updates = append(updates, domain.ObjectUpdate{
			PK:                 obj.PK,
			ItemType:           obj.ItemType,
			SubmittedBy:        obj.SubmittedBy,
			DateCreated:        obj.DateCreated,
			LastModified:       obj.LastModified,
			NewAffiliation:     newAffiliation,
			ModifiedBy:         req.ActingUserPK,
			ProvisionalVariant: obj.ProvisionalVariant,
		})
	}
	return updates
}

func recordOwnership(record *domain.CurationRecord) (affiliation, submitterPK string) {
	switch record.Type {
	case domain.CurationGDM:
		return record.GDM.Affiliation, record.GDM.SubmittedBy.PK
	case domain.CurationInterpretation:
		return record.Interpretation.Affiliation, record.Interpretation.SubmittedBy.PK
	}
	return "", ""
}

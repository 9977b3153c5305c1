package transfer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clingen-curation-server/internal/domain"
)

type stubDirectory struct {
	users map[string]string
}

func (s *stubDirectory) LookupUserPKByEmail(_ context.Context, email string) (string, error) {
	pk, ok := s.users[email]
	if !ok {
		return "", domain.ErrNotFound
	}
	return pk, nil
}

type stubLoader struct {
	gdm    *domain.GDM
	interp *domain.Interpretation
}

func (s *stubLoader) LoadGDM(_ context.Context, pk string) (*domain.GDM, error) {
	if s.gdm == nil || s.gdm.PK != pk {
		return nil, domain.ErrNotFound
	}
	return s.gdm, nil
}

func (s *stubLoader) LoadInterpretation(_ context.Context, pk string) (*domain.Interpretation, error) {
	if s.interp == nil || s.interp.PK != pk {
		return nil, domain.ErrNotFound
	}
	return s.interp, nil
}

type stubFinder struct {
	found   []domain.Interpretation
	err     error
	lastReq domain.InterpretationFilter
}

func (s *stubFinder) FindInterpretations(_ context.Context, filter domain.InterpretationFilter) ([]domain.Interpretation, error) {
	s.lastReq = filter
	return s.found, s.err
}

type stubStore struct {
	mu      sync.Mutex
	failPKs map[string]bool
	updates []domain.ObjectUpdate
}

func (s *stubStore) UpdateObject(_ context.Context, update domain.ObjectUpdate) error {
	if s.failPKs[update.PK] {
		return errors.New("update rejected")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(loader *stubLoader, finder *stubFinder, store *stubStore, cfg *domain.TransferConfig) *Engine {
	if cfg == nil {
		cfg = &domain.TransferConfig{}
	}
	directory := &stubDirectory{users: map[string]string{
		"alice@example.org": "user-alice",
		"bob@example.org":   "user-bob",
	}}
	return NewEngine(testLogger(), directory, loader, finder, store, cfg)
}

func individualGDM() *domain.GDM {
	return &domain.GDM{
		PK:          "gdm-1",
		ItemType:    "gdm",
		SubmittedBy: domain.UserRef{PK: "user-alice"},
		Annotations: []domain.Annotation{
			{
				PK:       "ann-1",
				ItemType: "annotation",
				Individuals: []domain.Individual{
					{
						PK:          "ind-1",
						ItemType:    "individual",
						SubmittedBy: domain.UserRef{PK: "user-alice"},
						Scores: []domain.VariantScore{
							{PK: "score-1", ItemType: "evidenceScore", SubmittedBy: domain.UserRef{PK: "user-alice"}},
						},
					},
					{
						PK:          "ind-2",
						ItemType:    "individual",
						SubmittedBy: domain.UserRef{PK: "user-other"},
					},
				},
			},
			{PK: "ann-2", ItemType: "annotation", Affiliation: "300"},
		},
	}
}

func gdmRequest(identifiers []string, destination string) domain.TransferRequest {
	return domain.TransferRequest{
		CurationType:           domain.CurationGDM,
		RecordPK:               "gdm-1",
		ContributorType:        domain.ContributorIndividual,
		ContributorIdentifiers: identifiers,
		DestinationAffiliation: destination,
		ActingUserPK:           "admin-1",
	}
}

func TestPlanRejectsMalformedRequest(t *testing.T) {
	engine := newTestEngine(&stubLoader{}, &stubFinder{}, &stubStore{}, nil)

	tests := []struct {
		name string
		req  domain.TransferRequest
	}{
		{"bad curation type", domain.TransferRequest{
			CurationType: "classification", RecordPK: "x",
			ContributorType: domain.ContributorIndividual, ContributorIdentifiers: []string{"a"},
			DestinationAffiliation: "100",
		}},
		{"missing record pk", domain.TransferRequest{
			CurationType: domain.CurationGDM, ContributorType: domain.ContributorIndividual,
			ContributorIdentifiers: []string{"a"}, DestinationAffiliation: "100",
		}},
		{"no identifiers", domain.TransferRequest{
			CurationType: domain.CurationGDM, RecordPK: "x",
			ContributorType: domain.ContributorIndividual, DestinationAffiliation: "100",
		}},
		{"missing destination", domain.TransferRequest{
			CurationType: domain.CurationGDM, RecordPK: "x",
			ContributorType: domain.ContributorIndividual, ContributorIdentifiers: []string{"a"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Plan(context.Background(), tt.req)
			var vErr *domain.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestPlanRecordNotFound(t *testing.T) {
	engine := newTestEngine(&stubLoader{}, &stubFinder{}, &stubStore{}, nil)

	_, err := engine.Plan(context.Background(), gdmRequest([]string{"alice@example.org"}, "200"))
	var tErr *domain.TransferError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.ErrCodeNotFound, tErr.Code)
}

func TestPlanContributorResolutionIsAllOrNothing(t *testing.T) {
	engine := newTestEngine(&stubLoader{gdm: individualGDM()}, &stubFinder{}, &stubStore{}, nil)

	_, err := engine.Plan(context.Background(),
		gdmRequest([]string{"alice@example.org", "unknown@example.org"}, "200"))
	var tErr *domain.TransferError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.ErrCodeNotFound, tErr.Code)
	assert.Contains(t, tErr.Reason, "unknown@example.org")
}

func TestPlanOwnershipValidation(t *testing.T) {
	t.Run("individual cannot move affiliation-owned record", func(t *testing.T) {
		gdm := individualGDM()
		gdm.Affiliation = "300"
		engine := newTestEngine(&stubLoader{gdm: gdm}, &stubFinder{}, &stubStore{}, nil)

		_, err := engine.Plan(context.Background(), gdmRequest([]string{"alice@example.org"}, "200"))
		var tErr *domain.TransferError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, domain.ErrCodeValidation, tErr.Code)
	})

	t.Run("record must belong to a named individual", func(t *testing.T) {
		engine := newTestEngine(&stubLoader{gdm: individualGDM()}, &stubFinder{}, &stubStore{}, nil)

		_, err := engine.Plan(context.Background(), gdmRequest([]string{"bob@example.org"}, "200"))
		var tErr *domain.TransferError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, domain.ErrCodeValidation, tErr.Code)
		assert.Contains(t, tErr.Reason, "does not belong")
	})

	t.Run("affiliation source must differ from destination", func(t *testing.T) {
		gdm := individualGDM()
		gdm.Affiliation = "300"
		engine := newTestEngine(&stubLoader{gdm: gdm}, &stubFinder{}, &stubStore{}, nil)

		req := gdmRequest([]string{"300"}, "300")
		req.ContributorType = domain.ContributorAffiliation
		_, err := engine.Plan(context.Background(), req)
		var tErr *domain.TransferError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, domain.ErrCodeValidation, tErr.Code)
	})

	t.Run("affiliation transfer needs an affiliated record", func(t *testing.T) {
		engine := newTestEngine(&stubLoader{gdm: individualGDM()}, &stubFinder{}, &stubStore{}, nil)

		req := gdmRequest([]string{"300"}, "200")
		req.ContributorType = domain.ContributorAffiliation
		_, err := engine.Plan(context.Background(), req)
		var tErr *domain.TransferError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, domain.ErrCodeValidation, tErr.Code)
	})
}

func TestPlanRejectsDuplicateClassification(t *testing.T) {
	// One classification by the individual source, one already owned by the
	// destination affiliation: moving the first would give the destination two.
	gdm := individualGDM()
	gdm.ProvisionalClassifications = []domain.ProvisionalClassification{
		{PK: "pc-1", ItemType: "provisionalClassification", SubmittedBy: domain.UserRef{PK: "user-alice"}},
		{PK: "pc-2", ItemType: "provisionalClassification", SubmittedBy: domain.UserRef{PK: "user-other"}, Affiliation: "200"},
	}
	engine := newTestEngine(&stubLoader{gdm: gdm}, &stubFinder{}, &stubStore{}, nil)

	_, err := engine.Plan(context.Background(), gdmRequest([]string{"alice@example.org"}, "200"))
	var tErr *domain.TransferError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.ErrCodeDuplicateConflict, tErr.Code)
}

func TestPlanTransfersEveryAnnotation(t *testing.T) {
	engine := newTestEngine(&stubLoader{gdm: individualGDM()}, &stubFinder{}, &stubStore{}, nil)

	plan, err := engine.Plan(context.Background(), gdmRequest([]string{"alice@example.org"}, "200"))
	require.NoError(t, err)

	pks := make([]string, 0, len(plan.Updates))
	for _, u := range plan.Updates {
		pks = append(pks, u.PK)
	}
	// Annotations have no submitter and are always carried, including the one
	// tagged with an unrelated affiliation. Objects by other users are not.
	assert.Contains(t, pks, "ann-1")
	assert.Contains(t, pks, "ann-2")
	assert.Contains(t, pks, "ind-1")
	assert.Contains(t, pks, "score-1")
	assert.Contains(t, pks, "gdm-1")
	assert.NotContains(t, pks, "ind-2")

	for _, u := range plan.Updates {
		require.NotNil(t, u.NewAffiliation)
		assert.Equal(t, "200", *u.NewAffiliation)
		assert.Equal(t, "admin-1", u.ModifiedBy)
	}
}

func TestPlanDestinationZeroClearsAffiliation(t *testing.T) {
	gdm := individualGDM()
	gdm.Affiliation = "300"
	gdm.Annotations[0].Affiliation = "300"
	engine := newTestEngine(&stubLoader{gdm: gdm}, &stubFinder{}, &stubStore{}, nil)

	req := gdmRequest([]string{"300"}, domain.NoAffiliation)
	req.ContributorType = domain.ContributorAffiliation
	plan, err := engine.Plan(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Updates)

	for _, u := range plan.Updates {
		assert.Nil(t, u.NewAffiliation)
	}
}

func TestPlanInterpretationDuplicateCheck(t *testing.T) {
	interp := &domain.Interpretation{
		PK:          "interp-1",
		ItemType:    "interpretation",
		SubmittedBy: domain.UserRef{PK: "user-alice"},
		Affiliation: "300",
		Variant:     "variant-9",
	}
	req := domain.TransferRequest{
		CurationType:           domain.CurationInterpretation,
		RecordPK:               "interp-1",
		ContributorType:        domain.ContributorAffiliation,
		ContributorIdentifiers: []string{"300"},
		DestinationAffiliation: "200",
	}

	t.Run("existing interpretation at destination rejects", func(t *testing.T) {
		finder := &stubFinder{found: []domain.Interpretation{{PK: "interp-2"}}}
		engine := newTestEngine(&stubLoader{interp: interp}, finder, &stubStore{}, nil)

		_, err := engine.Plan(context.Background(), req)
		var tErr *domain.TransferError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, domain.ErrCodeDuplicateConflict, tErr.Code)
		assert.Equal(t, "variant-9", finder.lastReq.Variant)
		assert.Equal(t, "200", finder.lastReq.Affiliation)
	})

	t.Run("query failure does not block the transfer", func(t *testing.T) {
		finder := &stubFinder{err: errors.New("service unavailable")}
		engine := newTestEngine(&stubLoader{interp: interp}, finder, &stubStore{}, nil)

		_, err := engine.Plan(context.Background(), req)
		assert.NoError(t, err)
	})

	t.Run("destination zero queries by creator", func(t *testing.T) {
		solo := &domain.Interpretation{
			PK:          "interp-1",
			ItemType:    "interpretation",
			SubmittedBy: domain.UserRef{PK: "user-alice"},
			Variant:     "variant-9",
		}
		zeroReq := domain.TransferRequest{
			CurationType:           domain.CurationInterpretation,
			RecordPK:               "interp-1",
			ContributorType:        domain.ContributorIndividual,
			ContributorIdentifiers: []string{"alice@example.org"},
			DestinationAffiliation: domain.NoAffiliation,
		}
		finder := &stubFinder{}
		engine := newTestEngine(&stubLoader{interp: solo}, finder, &stubStore{}, nil)

		_, err := engine.Plan(context.Background(), zeroReq)
		require.NoError(t, err)
		assert.Equal(t, "user-alice", finder.lastReq.SubmittedBy)
		assert.Empty(t, finder.lastReq.Affiliation)
	})
}

func TestPlanInterpretationRootCarriesProvisionalVariant(t *testing.T) {
	interp := &domain.Interpretation{
		PK:          "interp-1",
		ItemType:    "interpretation",
		SubmittedBy: domain.UserRef{PK: "user-alice"},
		Variant:     "variant-9",
		Evaluations: []domain.Evaluation{
			{PK: "eval-1", ItemType: "evaluation", SubmittedBy: domain.UserRef{PK: "user-alice"}},
		},
		ProvisionalVariant: domain.ProvisionalVariant{
			"classificationStatus": "In progress",
			"affiliation":          "300",
		},
	}
	req := domain.TransferRequest{
		CurationType:           domain.CurationInterpretation,
		RecordPK:               "interp-1",
		ContributorType:        domain.ContributorIndividual,
		ContributorIdentifiers: []string{"alice@example.org"},
		ActingUserPK:           "admin-1",
	}

	t.Run("destination affiliation rewrites the embedded field", func(t *testing.T) {
		clone := *interp
		clone.ProvisionalVariant = domain.ProvisionalVariant{"affiliation": "300"}
		r := req
		r.DestinationAffiliation = "200"
		engine := newTestEngine(&stubLoader{interp: &clone}, &stubFinder{}, &stubStore{}, nil)

		plan, err := engine.Plan(context.Background(), r)
		require.NoError(t, err)

		root := plan.Updates[len(plan.Updates)-1]
		assert.Equal(t, "interp-1", root.PK)
		require.NotNil(t, root.ProvisionalVariant)
		assert.Equal(t, "200", root.ProvisionalVariant["affiliation"])
	})

	t.Run("destination zero removes the embedded field entirely", func(t *testing.T) {
		clone := *interp
		clone.ProvisionalVariant = domain.ProvisionalVariant{
			"classificationStatus": "In progress",
			"affiliation":          "300",
		}
		r := req
		r.DestinationAffiliation = domain.NoAffiliation
		engine := newTestEngine(&stubLoader{interp: &clone}, &stubFinder{}, &stubStore{}, nil)

		plan, err := engine.Plan(context.Background(), r)
		require.NoError(t, err)

		root := plan.Updates[len(plan.Updates)-1]
		require.NotNil(t, root.ProvisionalVariant)
		_, present := root.ProvisionalVariant["affiliation"]
		assert.False(t, present, "field must be deleted, not nulled")
		assert.Equal(t, "In progress", root.ProvisionalVariant["classificationStatus"])
		assert.Nil(t, root.NewAffiliation)
	})

	t.Run("nested evaluations precede the root", func(t *testing.T) {
		clone := *interp
		clone.ProvisionalVariant = nil
		r := req
		r.DestinationAffiliation = "200"
		engine := newTestEngine(&stubLoader{interp: &clone}, &stubFinder{}, &stubStore{}, nil)

		plan, err := engine.Plan(context.Background(), r)
		require.NoError(t, err)
		require.Len(t, plan.Updates, 2)
		assert.Equal(t, "eval-1", plan.Updates[0].PK)
		assert.Equal(t, "interp-1", plan.Updates[1].PK)
	})
}

func TestApply(t *testing.T) {
	basePlan := func(pks ...string) *domain.TransferPlan {
		plan := &domain.TransferPlan{Request: gdmRequest([]string{"alice@example.org"}, "200")}
		for _, pk := range pks {
			plan.Updates = append(plan.Updates, domain.ObjectUpdate{PK: pk, ItemType: "individual"})
		}
		return plan
	}

	t.Run("all updates succeed", func(t *testing.T) {
		store := &stubStore{}
		engine := newTestEngine(&stubLoader{}, &stubFinder{}, store, nil)

		result, err := engine.Apply(context.Background(), basePlan("a", "b", "c"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, result.UpdatedPKs)
		assert.Empty(t, result.FailedPKs)
	})

	t.Run("partial failure reports both partitions", func(t *testing.T) {
		store := &stubStore{failPKs: map[string]bool{"b": true}}
		engine := newTestEngine(&stubLoader{}, &stubFinder{}, store, nil)

		result, err := engine.Apply(context.Background(), basePlan("a", "b", "c"))
		var pErr *domain.PartialFailureError
		require.ErrorAs(t, err, &pErr)
		assert.ElementsMatch(t, []string{"a", "c"}, result.UpdatedPKs)
		assert.Equal(t, []string{"b"}, result.FailedPKs)
		assert.Equal(t, result.UpdatedPKs, pErr.UpdatedPKs)
		assert.Len(t, pErr.Causes, 1)
	})

	t.Run("empty plan is not an error", func(t *testing.T) {
		engine := newTestEngine(&stubLoader{}, &stubFinder{}, &stubStore{}, nil)

		result, err := engine.Apply(context.Background(), basePlan())
		require.NoError(t, err)
		assert.Empty(t, result.UpdatedPKs)
		assert.Empty(t, result.FailedPKs)
	})

	t.Run("concurrency limit of one is respected", func(t *testing.T) {
		store := &stubStore{}
		engine := newTestEngine(&stubLoader{}, &stubFinder{}, store,
			&domain.TransferConfig{ApplyConcurrency: 1})

		result, err := engine.Apply(context.Background(), basePlan("a", "b"))
		require.NoError(t, err)
		assert.Len(t, result.UpdatedPKs, 2)
		// Serial application preserves plan order in the store.
		assert.Equal(t, "a", store.updates[0].PK)
		assert.Equal(t, "b", store.updates[1].PK)
	})
}

func TestExecuteEndToEnd(t *testing.T) {
	store := &stubStore{}
	engine := newTestEngine(&stubLoader{gdm: individualGDM()}, &stubFinder{}, store, nil)

	result, err := engine.Execute(context.Background(), gdmRequest([]string{"alice@example.org"}, "200"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.UpdatedPKs)
	assert.Empty(t, result.FailedPKs)
	for _, u := range store.updates {
		require.NotNil(t, u.NewAffiliation)
		assert.Equal(t, "200", *u.NewAffiliation)
	}
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clingen-curation-server/internal/audit"
	"github.com/clingen-curation-server/internal/domain"
	"github.com/clingen-curation-server/internal/score"
)

// DeriveScoreRequest carries the case facts for a proband score derivation.
type DeriveScoreRequest struct {
	Facts      domain.CaseFacts `json:"facts"`
	SavedScore *float64         `json:"savedScore,omitempty"`
}

// handleDeriveScore derives the default score, adjustable range, and upper
// limit for a proband's case facts.
func (s *Server) handleDeriveScore(c *gin.Context) {
	var req DeriveScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	derivation := score.Derive(req.Facts, req.SavedScore)

	moi := score.EffectiveMOI(score.ModeOfInheritanceType(req.Facts.ModeOfInheritance), req.Facts.ProbandIs)
	c.JSON(http.StatusOK, gin.H{
		"scoreComplete":  req.Facts.ScoreComplete(),
		"moiType":        moi,
		"defaultScore":   derivation.DefaultScore,
		"scoreRange":     derivation.ScoreRange,
		"upperLimit":     derivation.UpperLimit,
		"correlation_id": c.GetString("correlation_id"),
	})
}

// DeriveExperimentalScoreRequest carries an experimental evidence category.
type DeriveExperimentalScoreRequest struct {
	Category   domain.ExperimentalCategory `json:"category"`
	SavedScore *float64                    `json:"savedScore,omitempty"`
}

func (s *Server) handleDeriveExperimentalScore(c *gin.Context) {
	var req DeriveExperimentalScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	defaultScore := score.ExperimentalDefaultScore(req.Category, req.SavedScore)
	c.JSON(http.StatusOK, gin.H{
		"defaultScore":   defaultScore,
		"scoreRange":     score.ExperimentalScoreRange(req.Category, defaultScore),
		"correlation_id": c.GetString("correlation_id"),
	})
}

// AggregateScoresRequest carries the scored evidence for one proband.
type AggregateScoresRequest struct {
	ModeOfInheritance string                `json:"modeOfInheritance"`
	ProbandIs         string                `json:"probandIs,omitempty"`
	RecessiveZygosity domain.Zygosity       `json:"recessiveZygosity,omitempty"`
	Scores            []domain.VariantScore `json:"scores"`
}

func (s *Server) handleAggregateScores(c *gin.Context) {
	var req AggregateScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	moi := score.ModeOfInheritanceType(req.ModeOfInheritance)
	totals := score.Aggregate(req.Scores, moi, req.RecessiveZygosity, req.ProbandIs)
	doubled := score.IsDoubleCounted(moi, req.RecessiveZygosity, req.ProbandIs)

	c.JSON(http.StatusOK, gin.H{
		"defaultTotal":   totals.DefaultTotal,
		"adjustedTotal":  totals.AdjustedTotal,
		"hasAdjusted":    totals.HasAdjusted,
		"counted":        len(totals.Rows),
		"doubleCounted":  doubled,
		"correlation_id": c.GetString("correlation_id"),
	})
}

// handlePlanTransfer runs the planning stages without applying anything.
func (s *Server) handlePlanTransfer(c *gin.Context) {
	var req domain.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	plan, err := s.engine.Plan(c.Request.Context(), req)
	if err != nil {
		s.transferError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contributorPKs": plan.ContributorPKs,
		"updates":        plan.Updates,
		"correlation_id": c.GetString("correlation_id"),
	})
}

// handleTransfer plans and applies an ownership transfer, recording the
// outcome in the audit store.
func (s *Server) handleTransfer(c *gin.Context) {
	var req domain.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	operationID := uuid.New().String()
	log := s.log.WithFields(logrus.Fields{
		"operation_id":   operationID,
		"record":         req.RecordPK,
		"curation_type":  req.CurationType,
		"correlation_id": c.GetString("correlation_id"),
	})

	plan, err := s.engine.Plan(c.Request.Context(), req)
	if err != nil {
		log.WithError(err).Warn("Transfer rejected")
		s.recordAudit(c, req, nil, nil, audit.OutcomeRejected, err.Error())
		s.transferError(c, err)
		return
	}

	result, err := s.engine.Apply(c.Request.Context(), plan)

	var partial *domain.PartialFailureError
	switch {
	case err == nil:
		log.WithField("updated", len(result.UpdatedPKs)).Info("Transfer completed")
		s.recordAudit(c, req, plan, result, audit.OutcomeCompleted, "")
		c.JSON(http.StatusOK, gin.H{
			"operationId":    operationID,
			"updatedPKs":     result.UpdatedPKs,
			"correlation_id": c.GetString("correlation_id"),
		})
	case errors.As(err, &partial):
		log.WithFields(logrus.Fields{
			"updated": len(partial.UpdatedPKs),
			"failed":  len(partial.FailedPKs),
		}).Error("Transfer partially failed")
		s.recordAudit(c, req, plan, result, audit.OutcomePartial, err.Error())
		c.JSON(http.StatusMultiStatus, gin.H{
			"operationId":    operationID,
			"code":           domain.ErrCodePartialFailure,
			"updatedPKs":     partial.UpdatedPKs,
			"failedPKs":      partial.FailedPKs,
			"correlation_id": c.GetString("correlation_id"),
		})
	default:
		log.WithError(err).Error("Transfer failed")
		s.recordAudit(c, req, plan, result, audit.OutcomeRejected, err.Error())
		s.transferError(c, err)
	}
}

// handleListAudit returns recorded transfer attempts, optionally narrowed to
// one curation record.
func (s *Server) handleListAudit(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	var entries []*audit.TransferAudit
	if recordPK := c.Query("record"); recordPK != "" {
		entries, err = s.auditStore.ListByRecord(c.Request.Context(), recordPK, limit, offset)
	} else {
		entries, err = s.auditStore.List(c.Request.Context(), limit, offset)
	}
	if err != nil {
		s.log.WithError(err).Error("Audit listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":           domain.ErrCodeInternal,
			"error":          "failed to list audit entries",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	if entries == nil {
		entries = []*audit.TransferAudit{}
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":        entries,
		"correlation_id": c.GetString("correlation_id"),
	})
}

func (s *Server) recordAudit(
	c *gin.Context,
	req domain.TransferRequest,
	plan *domain.TransferPlan,
	result *domain.TransferResult,
	outcome audit.Outcome,
	reason string,
) {
	entry := &audit.TransferAudit{
		RecordPK:               req.RecordPK,
		CurationType:           string(req.CurationType),
		ContributorType:        string(req.ContributorType),
		Contributors:           req.ContributorIdentifiers,
		DestinationAffiliation: req.DestinationAffiliation,
		ActingUserPK:           req.ActingUserPK,
		Outcome:                outcome,
		Reason:                 reason,
	}
	if plan != nil {
		entry.Contributors = plan.ContributorPKs
	}
	if result != nil {
		entry.UpdatedPKs = result.UpdatedPKs
		entry.FailedPKs = result.FailedPKs
	}

	if err := s.auditStore.Record(c.Request.Context(), entry); err != nil {
		// The transfer itself succeeded or failed on its own terms; a broken
		// audit store must not change the response.
		s.log.WithError(err).Error("Failed to record transfer audit entry")
	}
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":           domain.ErrCodeValidation,
		"error":          err.Error(),
		"correlation_id": c.GetString("correlation_id"),
	})
}

// transferError maps engine failures onto HTTP statuses.
func (s *Server) transferError(c *gin.Context, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":           domain.ErrCodeValidation,
			"error":          validationErr.Error(),
			"field":          validationErr.Field,
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	var transferErr *domain.TransferError
	if errors.As(err, &transferErr) {
		status := http.StatusInternalServerError
		switch transferErr.Code {
		case domain.ErrCodeValidation:
			status = http.StatusBadRequest
		case domain.ErrCodeNotFound:
			status = http.StatusNotFound
		case domain.ErrCodeDuplicateConflict:
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"code":           transferErr.Code,
			"error":          transferErr.Reason,
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"code":           domain.ErrCodeInternal,
		"error":          err.Error(),
		"correlation_id": c.GetString("correlation_id"),
	})
}

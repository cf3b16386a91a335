package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claimwatch/claimwatch/internal/models"
	"github.com/claimwatch/claimwatch/internal/repositories"
)

// ClaimService owns the claim lifecycle around the relay: submitting a
// claim to the verifier, persisting it, and refreshing the stored copy
// whenever run state is fetched through the HTTP layer.
type ClaimService struct {
	Verifier VerifierClient
	Repo     repositories.ClaimRepository
	Log      *zap.Logger
}

func NewClaimService(verifier VerifierClient, repo repositories.ClaimRepository, log *zap.Logger) *ClaimService {
	return &ClaimService{Verifier: verifier, Repo: repo, Log: log}
}

// SubmitClaim creates a verification run for text and persists the claim.
// When the verifier is unreachable a demo run ID is synthesized so the
// client still gets a working, locally-served run.
func (s *ClaimService) SubmitClaim(ctx context.Context, text string) (*models.Claim, error) {
	run, err := s.Verifier.CreateRun(ctx, text)
	if err != nil {
		s.Log.Warn("verifier unavailable, falling back to demo run", zap.Error(err))
		run = models.Run{
			RunID:  models.DemoRunPrefix + uuid.NewString(),
			Status: models.StatusQueued,
		}
	}

	claim := &models.Claim{
		ID:     uuid.New(),
		Text:   text,
		RunID:  run.RunID,
		Status: run.Status,
	}
	if err := s.Repo.Create(claim); err != nil {
		return nil, fmt.Errorf("persist claim: %w", err)
	}
	return claim, nil
}

// GetRun returns the current state of runID and refreshes the stored claim
// row as a side effect. Demo runs are answered locally and never touch the
// verifier.
func (s *ClaimService) GetRun(ctx context.Context, runID string) (models.Run, error) {
	if models.IsDemoRunID(runID) {
		return s.demoRun(runID), nil
	}

	run, err := s.Verifier.GetRun(ctx, runID)
	if err != nil {
		return models.Run{}, err
	}

	if err := s.Repo.UpdateFromRun(runID, run); err != nil {
		// The fetched state is still good; persistence catches up on the
		// next fetch.
		s.Log.Warn("refresh claim from run", zap.String("run_id", runID), zap.Error(err))
	}
	return run, nil
}

// Vote forwards a community vote to the verifier. Votes on demo runs are
// accepted and dropped; there is no backend job to attach them to.
func (s *ClaimService) Vote(ctx context.Context, runID string, vote models.Vote) error {
	if models.IsDemoRunID(runID) {
		return nil
	}
	return s.Verifier.SubmitVote(ctx, runID, vote)
}

func (s *ClaimService) GetClaim(id uuid.UUID) (*models.Claim, error) {
	return s.Repo.GetByID(id)
}

func (s *ClaimService) ListClaims(limit int) ([]models.Claim, error) {
	return s.Repo.List(limit)
}

func (s *ClaimService) demoRun(runID string) models.Run {
	claimText := "demo claim"
	if claim, err := s.Repo.GetByRunID(runID); err == nil {
		claimText = claim.Text
	}
	return models.Run{
		RunID:             runID,
		Status:            models.StatusCompleted,
		Confidence:        0.5,
		ProvisionalAnswer: "Demo verdict for: " + claimText,
		Votes:             []models.Vote{},
		Evidence:          []models.Evidence{},
	}
}

package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/claimwatch/claimwatch/internal/models"
)

type ClaimRepository interface {
	Create(claim *models.Claim) error
	GetByID(id uuid.UUID) (*models.Claim, error)
	GetByRunID(runID string) (*models.Claim, error)
	List(limit int) ([]models.Claim, error)
	UpdateFromRun(runID string, run models.Run) error
}

type PostgresClaimRepository struct {
	DB *gorm.DB
}

func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &PostgresClaimRepository{DB: db}
}

func (repo *PostgresClaimRepository) Create(claim *models.Claim) error {
	if err := repo.DB.Create(claim).Error; err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (repo *PostgresClaimRepository) GetByID(id uuid.UUID) (*models.Claim, error) {
	var claim models.Claim
	if err := repo.DB.Where("id = ?", id).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (repo *PostgresClaimRepository) GetByRunID(runID string) (*models.Claim, error) {
	var claim models.Claim
	if err := repo.DB.Where("run_id = ?", runID).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (repo *PostgresClaimRepository) List(limit int) ([]models.Claim, error) {
	if limit <= 0 {
		limit = 50
	}
	var claims []models.Claim
	if err := repo.DB.Order("created_at DESC").Limit(limit).Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// UpdateFromRun refreshes the stored claim with the latest run state. The
// relay never writes here; this runs whenever a run is fetched through the
// HTTP layer so the database copy stays authoritative.
func (repo *PostgresClaimRepository) UpdateFromRun(runID string, run models.Run) error {
	err := repo.DB.Model(&models.Claim{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":     run.Status,
			"confidence": run.Confidence,
			"verdict":    run.ProvisionalAnswer,
		}).Error
	if err != nil {
		return fmt.Errorf("update claim for run %s: %w", runID, err)
	}
	return nil
}

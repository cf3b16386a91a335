package repositories

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/claimwatch/claimwatch/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func TestCreateClaim(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClaimRepository(db)

	claim := &models.Claim{
		ID:     uuid.New(),
		Text:   "the moon is cheese",
		RunID:  "run_abc",
		Status: models.StatusQueued,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "claims"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(claim)
	assert.NoError(t, err)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGetByRunID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClaimRepository(db)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "text", "run_id", "status"}).
		AddRow(id, "the moon is cheese", "run_abc", models.StatusInProgress)
	mock.ExpectQuery(`SELECT \* FROM "claims" WHERE run_id = .+`).
		WillReturnRows(rows)

	claim, err := repo.GetByRunID("run_abc")
	assert.NoError(t, err)
	assert.Equal(t, id, claim.ID)
	assert.Equal(t, models.StatusInProgress, claim.Status)
}

func TestGetByRunIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClaimRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "claims"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByRunID("run_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateFromRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClaimRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "claims" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	run := models.Run{
		RunID:             "run_abc",
		Status:            models.StatusCompleted,
		Confidence:        0.9,
		ProvisionalAnswer: "false",
	}
	err := repo.UpdateFromRun("run_abc", run)
	assert.NoError(t, err)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestListClaims(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClaimRepository(db)

	rows := sqlmock.NewRows([]string{"id", "text", "run_id"}).
		AddRow(uuid.New(), "claim one", "run_a").
		AddRow(uuid.New(), "claim two", "run_b")
	mock.ExpectQuery(`SELECT \* FROM "claims" ORDER BY created_at DESC`).
		WillReturnRows(rows)

	claims, err := repo.List(10)
	assert.NoError(t, err)
	assert.Len(t, claims, 2)
}

package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs("a1", "user-1", "Pilot", "key-1", StatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Create(context.Background(), Analysis{
		ID:        "a1",
		UserID:    "user-1",
		Title:     "Pilot",
		FileKey:   "key-1",
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "title", "file_key", "status", "error_code", "error_message",
		"result", "provider_results", "created_at", "updated_at", "completed_at",
	}).AddRow(
		"a1", "user-1", "Pilot", "key-1", StatusCompleted, nil, nil,
		`{"score":7.5,"recommendation":"Recommend","verdict":"Solid.","sections":[]}`,
		`[{"provider":"anthropic","status":"ok","durationMs":1200}]`,
		now, now, now,
	)
	mock.ExpectQuery("SELECT id, user_id, title").WithArgs("a1").WillReturnRows(rows)

	analysis, err := repo.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if analysis.Result == nil || analysis.Result.Score != 7.5 {
		t.Fatalf("unexpected result: %+v", analysis.Result)
	}
	if len(analysis.ProviderResults) != 1 || analysis.ProviderResults[0].Provider != "anthropic" {
		t.Fatalf("unexpected provider results: %+v", analysis.ProviderResults)
	}
	if analysis.CompletedAt == nil {
		t.Fatal("expected completed_at")
	}
}

func TestPGRepoGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT id, user_id, title").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoFinalize_AlreadyTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE analyses").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err = repo.Finalize(context.Background(), "a1", StatusCompleted, &Report{}, nil, nil, nil, time.Now().UTC())
	if !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("expected ErrAlreadyFinal, got %v", err)
	}
}

func TestPGRepoFinalize_RejectsNonTerminalStatus(t *testing.T) {
	repo := &PGRepo{}
	err := repo.Finalize(context.Background(), "a1", StatusAnalyzing, nil, nil, nil, nil, time.Now().UTC())
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/config"
	"github.com/freelancedao/escrow-service/internal/db"
	"github.com/freelancedao/escrow-service/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		DB: config.DBConfig{
			Driver:       "sqlite",
			DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
			MaxOpenConns: 1,
		},
	}
	database, err := db.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return database
}

func seedJob(t *testing.T, repo *JobRepository, milestones model.Milestones) *model.Job {
	t.Helper()
	job := &model.Job{
		Title:      "Marketing site",
		Status:     model.JobStatusOpen,
		Budget:     model.Budget{Amount: 900, Currency: "USD"},
		Milestones: milestones,
		ClientID:   uuid.New(),
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func seedProposal(t *testing.T, repo *ProposalRepository, jobID uuid.UUID, submitted time.Time) *model.Proposal {
	t.Helper()
	p := &model.Proposal{
		JobID:        jobID,
		FreelancerID: uuid.New(),
		Budget:       model.Budget{Amount: 900, Currency: "USD"},
		Milestones:   model.Milestones{{Name: "Design", Amount: 400}, {Name: "Build", Amount: 500}},
		SubmittedAt:  submitted,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

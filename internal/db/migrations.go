package db

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/model"
)

var models = []any{
	&model.Job{},
	&model.Proposal{},
	&model.Contract{},
	&model.Payment{},
	&model.Notification{},
}

// Portable across postgres and sqlite; both support partial indexes.
var migrationStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_proposals_job_freelancer ON proposals (job_id, freelancer_id);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_proposals_job_accepted ON proposals (job_id) WHERE status = 'accepted';`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_proposal_id ON contracts (proposal_id);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_reference ON payments (reference);`,
	`CREATE INDEX IF NOT EXISTS idx_proposals_job_status ON proposals (job_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications (recipient_id, created_at);`,
}

var postgresStatements = []string{
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_jobs_progress') THEN
			ALTER TABLE jobs ADD CONSTRAINT chk_jobs_progress CHECK (progress BETWEEN 0 AND 100);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_jobs_status') THEN
			ALTER TABLE jobs ADD CONSTRAINT chk_jobs_status
				CHECK (status IN ('draft', 'open', 'in_progress', 'completed'));
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_proposals_status') THEN
			ALTER TABLE proposals ADD CONSTRAINT chk_proposals_status
				CHECK (status IN ('pending', 'accepted', 'rejected', 'withdrawn'));
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_contracts_status') THEN
			ALTER TABLE contracts ADD CONSTRAINT chk_contracts_status
				CHECK (status IN ('pending_client_signature', 'pending_escrow', 'pending_freelancer_signature', 'active', 'completed', 'disputed'));
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_contracts_escrow_before_freelancer') THEN
			ALTER TABLE contracts ADD CONSTRAINT chk_contracts_escrow_before_freelancer
				CHECK (NOT freelancer_sig_signed OR (client_sig_signed AND escrow_funded));
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_payments_status') THEN
			ALTER TABLE payments ADD CONSTRAINT chk_payments_status
				CHECK (status IN ('pending', 'success', 'failed'));
		END IF;
	END
	$$;`,
}

func Migrate(db *gorm.DB, log zerolog.Logger) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	statements := migrationStatements
	if db.Dialector.Name() == "postgres" {
		statements = append(statements, postgresStatements...)
	}

	for i, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Info().Int("statements", len(statements)).Msg("migrations applied")
	return nil
}

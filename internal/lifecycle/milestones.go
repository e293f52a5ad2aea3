package lifecycle

import (
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/freelancedao/escrow-service/internal/model"
)

const defaultMilestoneDuration = "1 week"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func milestoneValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateMilestones checks a client-supplied milestone list.
func ValidateMilestones(milestones model.Milestones) error {
	if len(milestones) == 0 {
		return invalidInputf("at least one milestone is required")
	}
	v := milestoneValidator()
	for i := range milestones {
		if err := v.Struct(milestones[i]); err != nil {
			return invalidInputf("milestone %d: %v", i, err)
		}
	}
	return nil
}

// Progress is round(100 * completed / total), and 0 for an empty list.
func Progress(milestones model.Milestones) int {
	total := len(milestones)
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(milestones.CompletedCount()) / float64(total)))
}

// SetCompleted flips a single milestone. CompletedAt keeps the first
// completion time while the flag stays set.
func SetCompleted(ms *model.Milestone, completed bool, now time.Time) {
	if completed {
		if !ms.Completed || ms.CompletedAt == nil {
			at := now
			ms.CompletedAt = &at
		}
	} else {
		ms.CompletedAt = nil
	}
	ms.Completed = completed
}

// RecomputeJob derives progress and the completed/in_progress status from
// the job's milestones.
func RecomputeJob(job *model.Job) {
	total := len(job.Milestones)
	done := job.Milestones.CompletedCount()
	job.Progress = Progress(job.Milestones)

	switch {
	case total > 0 && done == total:
		job.Status = model.JobStatusCompleted
	case job.Status == model.JobStatusCompleted && done < total:
		job.Status = model.JobStatusInProgress
	}
}

func CheckIndex(milestones model.Milestones, index int) error {
	if index < 0 || index >= len(milestones) {
		return outOfRangef("invalid milestone index %d (milestones: %d)", index, len(milestones))
	}
	return nil
}

// ToggleMilestone sets the completed flag of one job milestone and
// recomputes the job's progress and status.
func ToggleMilestone(job *model.Job, index int, completed bool, now time.Time) error {
	if err := CheckIndex(job.Milestones, index); err != nil {
		return err
	}
	SetCompleted(&job.Milestones[index], completed, now)
	RecomputeJob(job)
	return nil
}

// MilestonesDiffer compares a job's milestones with the contract's by length,
// name, amount and completion.
func MilestonesDiffer(job, contract model.Milestones) bool {
	if len(job) != len(contract) {
		return true
	}
	for i := range job {
		if job[i].Name != contract[i].Name ||
			job[i].Amount != contract[i].Amount ||
			job[i].Completed != contract[i].Completed {
			return true
		}
	}
	return false
}

// JobMilestonesFromContract builds the job's view of the contract milestones.
func JobMilestonesFromContract(contract model.Milestones) model.Milestones {
	out := make(model.Milestones, 0, len(contract))
	for _, ms := range contract.Clone() {
		duration := ms.Duration
		if duration == "" {
			duration = defaultMilestoneDuration
		}
		out = append(out, model.Milestone{
			Name:        ms.Name,
			Amount:      ms.Amount,
			Duration:    duration,
			Completed:   ms.Completed,
			CompletedAt: ms.CompletedAt,
		})
	}
	return out
}

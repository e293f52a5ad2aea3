package model

import "github.com/google/uuid"

// JobPatch is a partial update of the fields the lifecycle engine is allowed
// to change on a job. Nil fields leave the base value untouched.
type JobPatch struct {
	Status       *JobStatus
	Progress     *int
	FreelancerID *uuid.UUID
	Milestones   Milestones
}

// Apply returns a copy of base with the patch merged over it.
func (p JobPatch) Apply(base Job) Job {
	out := base
	out.Milestones = base.Milestones.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Progress != nil {
		out.Progress = *p.Progress
	}
	if p.FreelancerID != nil {
		id := *p.FreelancerID
		out.FreelancerID = &id
	}
	if p.Milestones != nil {
		out.Milestones = p.Milestones.Clone()
	}
	return out
}

func AssignFreelancer(freelancerID uuid.UUID) JobPatch {
	status := JobStatusInProgress
	return JobPatch{Status: &status, FreelancerID: &freelancerID}
}

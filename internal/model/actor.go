package model

import "github.com/google/uuid"

type ActorKind string

const (
	ActorClient     ActorKind = "client"
	ActorFreelancer ActorKind = "freelancer"
	ActorAdmin      ActorKind = "admin"
)

// Actor is the authenticated identity behind a request. It is resolved once
// from the access token and passed into the services as a value.
type Actor struct {
	ID    uuid.UUID
	Kind  ActorKind
	Email string
}

func (a Actor) IsClient() bool {
	return a.Kind == ActorClient
}

func (a Actor) IsFreelancer() bool {
	return a.Kind == ActorFreelancer
}

func (a Actor) IsAdmin() bool {
	return a.Kind == ActorAdmin
}

func ParseActorKind(raw string) (ActorKind, bool) {
	switch ActorKind(raw) {
	case ActorClient, ActorFreelancer, ActorAdmin:
		return ActorKind(raw), true
	default:
		return "", false
	}
}

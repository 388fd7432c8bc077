package usecase

import (
	"magnetstream/internal/domain"
	"magnetstream/internal/registry"
)

type StatusSession struct {
	Sessions *registry.Registry
}

// Execute returns live transfer counters for one session.
func (uc StatusSession) Execute(id domain.InfoHash) (domain.SessionStatus, error) {
	session, err := uc.Sessions.Lookup(id)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	return domain.SessionStatus{
		ID:           session.ID,
		TrafficStats: session.Handle.Stats(),
	}, nil
}

// Snapshot returns the status of every active session in creation order.
func (uc StatusSession) Snapshot() []domain.SessionStatus {
	sessions := uc.Sessions.List()
	out := make([]domain.SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, domain.SessionStatus{
			ID:           s.ID,
			TrafficStats: s.Handle.Stats(),
		})
	}
	return out
}

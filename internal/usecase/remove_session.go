package usecase

import (
	"magnetstream/internal/domain"
	"magnetstream/internal/registry"
)

type RemoveSession struct {
	Sessions *registry.Registry
}

// Execute stops the session's download and forgets it. Removing an unknown
// or already-removed session is not an error; the returned bool reports
// whether anything was actually dropped.
func (uc RemoveSession) Execute(id domain.InfoHash) bool {
	return uc.Sessions.Remove(id)
}

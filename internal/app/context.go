package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"prepx/internal/domain"
	"prepx/internal/repo"
)

// ResolveSession picks the active session. It prefers the override, then a
// single-session workspace. If the workspace has no session yet, one is
// created on the fly so first use needs no setup step.
func ResolveSession(ctx context.Context, override string, r repo.Repo) (domain.Session, error) {
	if override != "" {
		s, err := r.GetSession(ctx, override)
		if errors.Is(err, repo.ErrNotFound) {
			s = domain.Session{ID: override, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
			if err := r.InsertSession(ctx, s); err != nil {
				return domain.Session{}, err
			}
			return s, nil
		}
		return s, err
	}
	s, err := r.SingleSession(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Session{}, err
	}
	s = domain.Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := r.InsertSession(ctx, s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

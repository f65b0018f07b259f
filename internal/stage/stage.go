package stage

import (
	"context"
	"fmt"

	"prepx/internal/extract"
)

// Caps are the hard output-size limits enforced by truncation, never by
// error.
type Caps struct {
	MaxModules      int
	MaxModuleTopics int
	MaxScopeTopics  int
	TocPages        int
	SamplePages     int
	MaxMapperChars  int
}

// DefaultCaps mirrors the shipped configuration defaults.
func DefaultCaps() Caps {
	return Caps{
		MaxModules:      10,
		MaxModuleTopics: 3,
		MaxScopeTopics:  15,
		TocPages:        15,
		SamplePages:     3,
		MaxMapperChars:  15000,
	}
}

// Env bundles the shared machinery every stage routes through: the
// extractor client, the single process-wide rate limiter and the
// isolation manager.
type Env struct {
	Client    extract.Client
	Limiter   *extract.RateLimiter
	Isolation *extract.IsolationManager
	Caps      Caps
}

// call performs one rate-limited, isolated extractor round trip and
// returns the raw text response.
func (e Env) call(ctx context.Context, stageName, system, user string) (string, error) {
	if e.Client == nil {
		return "", fmt.Errorf("stage %s: no extractor client configured", stageName)
	}
	if e.Limiter != nil {
		if err := e.Limiter.Acquire(ctx); err != nil {
			return "", err
		}
	}
	var text string
	run := func(ctx context.Context, _ *extract.CallContext) error {
		resp, err := e.Client.Complete(ctx, extract.Request{
			Stage:        stageName,
			SystemPrompt: system,
			UserPrompt:   user,
		})
		if err != nil {
			return err
		}
		text = resp.Text
		return nil
	}
	var err error
	if e.Isolation != nil {
		err = e.Isolation.WithFreshContext(ctx, run)
	} else {
		err = run(ctx, nil)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

package engine

import (
	"context"

	"vigil/internal/behavior/ports"
)

// Run drains the rebuild queue until the context is cancelled. The host
// process drives this loop; admission never blocks on it. A rebuild failure
// for one identity is logged and isolated, it never stops the worker or
// affects other identities. Between a threshold crossing and the worker
// catching up, a stale baseline may be used concurrently; that staleness is
// bounded by the rebuild interval and is accepted.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case identity := <-s.rebuilds:
			if _, err := s.baselines.Rebuild(ctx, identity); err != nil {
				if s.logger != nil {
					s.logger.ErrorContext(ctx, "baseline rebuild failed",
						"identity", identity,
						"error", err,
					)
				}
				continue
			}
			ports.LogAudit(ctx, s.logger, "baseline_rebuilt", "identity", identity)
		}
	}
}

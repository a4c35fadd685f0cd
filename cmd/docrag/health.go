package main

import (
	"context"
	"errors"
	"fmt"

	dhttp "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/llm"
)

// healthChecks returns the component probes shared by `docrag check` and
// the /health endpoint.
func (a *app) healthChecks() map[string]dhttp.HealthCheck {
	checks := map[string]dhttp.HealthCheck{
		"embeddings": func(ctx context.Context) error {
			_, err := a.embedder.Embed(ctx, "health check")
			return err
		},
		"vectorstore": func(ctx context.Context) error {
			_, err := a.store.Stats(ctx)
			return err
		},
		"telemetry": func(context.Context) error {
			h := a.telemetry.Health()
			if h.Degraded {
				return errors.New(h.Reason)
			}
			return nil
		},
	}
	if a.backend != nil {
		checks["llm"] = func(ctx context.Context) error {
			status := llm.CheckConnection(ctx, a.backend)
			if !status.Available {
				return errors.New(status.Error)
			}
			return nil
		}
	}
	return checks
}

func connectionError(status llm.ConnectionStatus) error {
	if status.Available {
		return nil
	}
	return fmt.Errorf("%s: %s", status.Model, status.Error)
}

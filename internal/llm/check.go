package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// ConnectionStatus is the outcome of CheckConnection.
type ConnectionStatus struct {
	Available bool     `json:"available"`
	Model     string   `json:"model"`
	ModelInfo string   `json:"model_info,omitempty"`
	Models    []string `json:"models,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// CheckConnection probes backend and, when it can list models, verifies
// that the configured model is installed. A bare model name also matches
// its ":latest" tag.
func CheckConnection(ctx context.Context, backend Backend) ConnectionStatus {
	status := ConnectionStatus{Model: backend.ModelName()}
	if !backend.IsAvailable(ctx) {
		status.Error = "language model service is not reachable"
		return status
	}

	lister, ok := backend.(ModelLister)
	if !ok {
		status.Available = true
		return status
	}

	models, err := lister.ListModels(ctx)
	if err != nil {
		status.Error = fmt.Sprintf("listing models: %v", err)
		return status
	}
	status.Models = models

	model := backend.ModelName()
	switch {
	case slices.Contains(models, model):
		status.Available = true
		status.ModelInfo = fmt.Sprintf("model %s found", model)
	case slices.Contains(models, model+":latest"):
		status.Available = true
		status.ModelInfo = fmt.Sprintf("model %s:latest found", model)
	default:
		status.Error = fmt.Sprintf("model %s not installed (available: %s)", model, strings.Join(models, ", "))
	}
	return status
}

package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/llm"
)

var checkTimeout time.Duration

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "timeout for each probe")
	rootCmd.AddCommand(checkCmd)
}

// checkResult is the JSON form of `docrag check`.
type checkResult struct {
	LLM        llm.ConnectionStatus `json:"llm"`
	Components map[string]string    `json:"components"`
	Healthy    bool                 `json:"healthy"`
}

// checkCmd verifies that every dependency is reachable
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the language model, embeddings, vector store and telemetry",
	Long: `Probe every external dependency and report whether docrag can answer
queries. For Ollama the configured model must also be installed.

Examples:
  docrag check
  DOCRAG_LLM_MODEL=llama3.1:8b docrag check --json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	res := checkResult{Components: map[string]string{}, Healthy: true}

	llmCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	res.LLM = llm.CheckConnection(llmCtx, a.backend)
	cancel()
	if err := connectionError(res.LLM); err != nil {
		res.Healthy = false
	}

	for name, check := range a.healthChecks() {
		if name == "llm" {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(probeCtx)
		cancel()
		if err != nil {
			res.Components[name] = err.Error()
			res.Healthy = false
			continue
		}
		res.Components[name] = "ok"
	}

	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		if err := connectionError(res.LLM); err != nil {
			fmt.Fprintf(w, "llm          FAIL  %v\n", err)
		} else {
			fmt.Fprintf(w, "llm          ok    %s\n", res.LLM.ModelInfo)
		}
		names := make([]string, 0, len(res.Components))
		for name := range res.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			status := res.Components[name]
			if status == "ok" {
				fmt.Fprintf(w, "%-12s ok\n", name)
			} else {
				fmt.Fprintf(w, "%-12s FAIL  %s\n", name, status)
			}
		}
	}

	if !res.Healthy {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

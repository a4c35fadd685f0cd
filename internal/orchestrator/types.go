package orchestrator

import (
	"time"

	"github.com/fyrsmithlabs/docrag/internal/citation"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// State is a step of a query.
type State string

const (
	StateRetrieve          State = "retrieve"
	StateShortCircuitEmpty State = "short_circuit_empty"
	StateBuildPrompt       State = "build_prompt"
	StateGenerate          State = "generate"
	StateParse             State = "parse"
	StateAssemble          State = "assemble"
)

// NoInformationAnswer is returned when no passage matches a question.
const NoInformationAnswer = "I could not find any relevant information in the indexed documents to answer this question."

// QueryOptions tunes one query. Zero values use the chain defaults.
type QueryOptions struct {
	Template string
	TopK     int
	Filter   vectorstore.Filter
}

// Answer is the result of a query.
type Answer struct {
	Answer    string               `json:"answer"`
	Sources   []vectorstore.Result `json:"sources"`
	Citations []citation.Citation  `json:"citations"`
	Metadata  Metadata             `json:"metadata"`
}

// Metadata describes how an answer was produced.
type Metadata struct {
	QueryID         string        `json:"query_id"`
	Duration        time.Duration `json:"duration"`
	ChunksRetrieved int           `json:"chunks_retrieved"`
	Model           string        `json:"model"`
	Template        string        `json:"template"`
	// State is the last state entered; on failure, the state that failed.
	State State `json:"state"`
}

// Config configures a Chain.
type Config struct {
	// Timeout bounds the generation call. 0 disables the timeout.
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Package orchestrator answers questions over the indexed documents.
//
// A Chain runs one query through a fixed sequence of states:
//
//	retrieve → build_prompt → generate → parse → assemble
//
// When retrieval finds no passages the chain moves to short_circuit_empty
// and answers with NoInformationAnswer without calling the language model.
//
// The retrieved context is created once and handed to both the prompt
// builder and the citation parser, so "[Source N]" in an answer always
// refers to the Nth passage listed in the prompt.
//
// Generation runs under Config.Timeout. A deadline surfaces as
// llm.ErrGenerationTimeout and any other backend failure as
// llm.ErrGenerationFailed. The chain never retries.
package orchestrator

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides completion-service clients for the interpretation
// pipeline. The completion service is treated as a black box: prompt text
// in, completion text out, fallible. Callers must never assume the
// response is well formed and must enforce their own timeouts via ctx.
//
// Thread Safety:
//
//	All implementations in this package must be safe for concurrent use.
package llm

import "context"

// CompletionRequest holds provider-agnostic options for one completion.
type CompletionRequest struct {
	// SystemPrompt sets the instruction frame. May be empty.
	SystemPrompt string

	// UserPrompt is the prompt body. Must not be empty.
	UserPrompt string

	// Temperature controls randomness (0.0-1.0). The interpretation
	// pipeline runs near-deterministic (0.1 typical).
	Temperature float64

	// MaxTokens limits the response length. Zero means provider default.
	MaxTokens int

	// JSONMode asks the provider to constrain output to a JSON object
	// where supported. Advisory only: callers must still run the
	// lenient response parsing.
	JSONMode bool
}

// CompletionClient is the minimal interface the pipeline needs from an
// LLM provider.
//
// Description:
//
//	The enhancer, the AI AOI matcher, and the signal generator only need
//	single-shot completions (no tool calls, no streaming, no history).
//	This minimal surface keeps provider adapters trivial.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CompletionClient interface {
	// Complete sends one prompt and returns the raw response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout. The caller owns the
	//     timeout; a deadline error is treated like any other failure.
	//   - req: The completion request.
	//
	// Outputs:
	//   - string: The raw response text, unparsed.
	//   - error: Non-nil on any transport, auth, rate-limit, or provider
	//     failure.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

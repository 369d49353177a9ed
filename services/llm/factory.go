// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"os"
	"strings"
)

// NewFromEnv constructs a CompletionClient based on COMPLETION_PROVIDER.
//
// Description:
//
//	Supported values: "openai" (default), "anthropic". Each provider
//	reads its own API key and model from the environment.
//
// Outputs:
//   - CompletionClient: The configured client.
//   - error: Non-nil for unknown providers or missing credentials.
func NewFromEnv() (CompletionClient, error) {
	provider := strings.ToLower(os.Getenv("COMPLETION_PROVIDER"))
	switch provider {
	case "", "openai":
		return NewOpenAIClient()
	case "anthropic":
		return NewAnthropicClient()
	default:
		return nil, fmt.Errorf("llm: unknown completion provider %q", provider)
	}
}

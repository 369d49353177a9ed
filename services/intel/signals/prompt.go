// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signals

import (
	"fmt"
	"strings"
)

const signalSystemPrompt = `You are a market analyst converting geospatial supply-chain anomalies into trading signals.
For each anomaly, produce exactly one signal as an element of a JSON array:
[{"instrument": "<ticker, under 10 characters>", "direction": "long"|"short"|"neutral", "rationale": "<at least two full sentences naming the catalyst and the exposure>", "confidence": <0.0-1.0>}]
Order the signals to match the order of the anomalies. Respond with the JSON array only, no commentary.`

// buildSignalPrompt renders one anomaly batch plus optional market
// context as the user prompt.
func buildSignalPrompt(batch []Anomaly, mc *MarketContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Anomalies (%d):\n", len(batch))
	for i, a := range batch {
		fmt.Fprintf(&b, "%d. site=%s (%s, %s) magnitude=%.2f confidence=%.2f observed=%s",
			i+1, a.AOIName, a.AOIID, a.Domain, a.Magnitude, a.Confidence,
			a.Timestamp.Format("2006-01-02"))
		if a.Description != "" {
			fmt.Fprintf(&b, " detail=%q", a.Description)
		}
		b.WriteString("\n")
	}

	if mc != nil {
		b.WriteString("\nMarket context:\n")
		if mc.Sentiment != "" {
			fmt.Fprintf(&b, "- sentiment: %s\n", mc.Sentiment)
		}
		if mc.VolatilityIndex > 0 {
			fmt.Fprintf(&b, "- volatility index: %.1f\n", mc.VolatilityIndex)
		}
		for _, h := range mc.Headlines {
			fmt.Fprintf(&b, "- headline: %s\n", h)
		}
	}
	return b.String()
}

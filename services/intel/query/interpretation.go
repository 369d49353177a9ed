// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// buildInterpretation renders the resolved query as a one-line summary
// suitable for echoing back to the caller.
func (p *Parser) buildInterpretation(q *ParsedQuery) string {
	var b strings.Builder
	b.WriteString("Searching ")

	if q.AllDomainsSelected() {
		b.WriteString("all domains")
	} else {
		b.WriteString(joinDomains(q.Domains))
	}

	if len(q.Regions) > 0 {
		b.WriteString(" in ")
		b.WriteString(joinRegions(q.Regions))
	} else {
		b.WriteString(" worldwide")
	}

	if q.Severity != "" {
		fmt.Fprintf(&b, " at %s severity", q.Severity)
	}

	b.WriteString(timeframeClause(q.Timeframe.Period))
	fmt.Fprintf(&b, ", magnitude %.2f-%.2f, confidence >= %.2f",
		q.Magnitude.Min, q.Magnitude.Max, q.Confidence.Min)

	if q.MarketIntent != "" {
		fmt.Fprintf(&b, ", %s framing", q.MarketIntent)
	}
	if len(q.AOINames) > 0 {
		fmt.Fprintf(&b, ", sites: %s", strings.Join(q.AOINames, ", "))
	}
	return b.String()
}

// timeframeClause phrases the timeframe for the summary line. Period
// labels come in several shapes: clock-relative words ("today"),
// relative phrases ("past week"), compound counts ("3 weeks"), and
// absolute forms ("since 2026-08-01", "2026-08-01 to 2026-08-14").
// Each shape carries its own preposition so the sentence reads
// naturally.
func timeframeClause(period string) string {
	switch {
	case period == "today" || period == "yesterday":
		return " for " + period
	case period == "right now":
		return " right now"
	case period == "recent" || period == "recently":
		return " over recent days"
	case period == "ytd" || period == "year to date":
		return " year to date"
	case strings.HasPrefix(period, "since "):
		return " " + period
	case strings.HasPrefix(period, "this "):
		return " " + period
	case len(period) > 0 && period[0] >= '0' && period[0] <= '9':
		if strings.Contains(period, " to ") {
			return " from " + period
		}
		return " over the past " + period
	default:
		return " over the " + period
	}
}

func joinDomains(ds []lexicon.Domain) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

func joinRegions(rs []lexicon.Region) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

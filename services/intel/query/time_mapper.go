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
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// =============================================================================
// Time Mapper
// =============================================================================

// Stage confidences for the time mapper, per the mapper matching order:
// exact phrase, then compound numeric, then absolute date, then
// containment fallback. The first successful stage wins.
const (
	timeConfExact       = 1.0
	timeConfNumeric     = 0.95
	timeConfAbsolute    = 0.95
	timeConfContainment = 0.7
)

// TimeMatch is a resolved time expression.
type TimeMatch struct {
	// Start and End are the absolute window bounds.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Days is the window's day span (1 for "today").
	Days int `json:"days"`

	// Period is the label to carry into the Timeframe ("today",
	// "past week", "3 weeks", "since 2024-01-15").
	Period string `json:"period"`

	// Confidence is the extraction confidence, per stage.
	Confidence float64 `json:"confidence"`

	// Source tags the stage that produced the match:
	// "exact", "numeric", "absolute", "contextual".
	Source string `json:"source"`
}

var (
	// Number plus a unit word: "3 weeks", "30 days", "past 2 months".
	compoundTimeRe = regexp.MustCompile(`\b(\d{1,4})\s*(day|days|week|weeks|fortnight|fortnights|month|months|quarter|quarters|year|years)\b`)

	// ISO-8601 calendar dates.
	isoDateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// MapTime resolves a time expression in text to an absolute window.
//
// Description:
//
//	Pure function of (text, now). Stages, first success wins:
//	1. "today"/"yesterday" and exact lexicon phrases. "today" and
//	   "yesterday" resolve clock-relative (midnight boundaries), not as
//	   day counts.
//	2. Compound numeric expressions ("3 weeks", "30 days") via the
//	   fixed unit table.
//	3. Absolute ISO dates; one date opens a window from it to now, two
//	   dates bound the window explicitly.
//	4. Containment fallback against the phrase table for phrases that
//	   appear mid-word or hyphenated.
//
// Outputs:
//
//   - *TimeMatch: The resolved window, or nil when the text carries no
//     time signal. Callers must supply the default window; nil is never
//     silently treated as "no filter".
func MapTime(tables *lexicon.Tables, text string, now time.Time) *TimeMatch {
	lower := strings.ToLower(text)
	words := tokenSet(lower)

	// Stage 1: clock-relative specials, then exact phrases.
	if words["today"] {
		start := midnight(now)
		return &TimeMatch{
			Start: start, End: now, Days: 1,
			Period: "today", Confidence: timeConfExact, Source: "exact",
		}
	}
	if words["yesterday"] {
		end := midnight(now)
		return &TimeMatch{
			Start: end.AddDate(0, 0, -1), End: end, Days: 1,
			Period: "yesterday", Confidence: timeConfExact, Source: "exact",
		}
	}
	if phrase, days, ok := bestTimePhrase(tables.TimePhrases, func(p string) bool {
		return phraseInText(lower, words, p)
	}); ok {
		return windowMatch(now, days, phrase, timeConfExact, "exact")
	}

	// Stage 2: compound numeric expressions.
	if m := compoundTimeRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			if unitDays, ok := tables.TimeUnits[m[2]]; ok {
				days := n * unitDays
				label := fmt.Sprintf("%d %s", n, m[2])
				return windowMatch(now, days, label, timeConfNumeric, "numeric")
			}
		}
	}

	// Stage 3: absolute dates.
	if dates := isoDateRe.FindAllString(lower, 2); len(dates) > 0 {
		start, err := time.Parse("2006-01-02", dates[0])
		if err == nil {
			end := now
			period := "since " + dates[0]
			if len(dates) == 2 {
				if e, err2 := time.Parse("2006-01-02", dates[1]); err2 == nil {
					end = e
					period = dates[0] + " to " + dates[1]
				}
			}
			if end.After(start) {
				days := int(end.Sub(start).Hours()/24) + 1
				return &TimeMatch{
					Start: start, End: end, Days: days,
					Period: period, Confidence: timeConfAbsolute, Source: "absolute",
				}
			}
		}
	}

	// Stage 4: containment fallback ("the past-week window").
	if phrase, days, ok := bestTimePhrase(tables.TimePhrases, func(p string) bool {
		return strings.Contains(lower, strings.ReplaceAll(p, " ", "-"))
	}); ok {
		return windowMatch(now, days, phrase, timeConfContainment, "contextual")
	}

	return nil
}

// bestTimePhrase scans the phrase table with a match predicate and
// returns the longest matching phrase (ties broken lexicographically),
// keeping results independent of map iteration order.
func bestTimePhrase(phrases map[string]int, match func(string) bool) (string, int, bool) {
	best := ""
	for p := range phrases {
		if !match(p) {
			continue
		}
		if len(p) > len(best) || (len(p) == len(best) && p < best) {
			best = p
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, phrases[best], true
}

func windowMatch(now time.Time, days int, period string, conf float64, source string) *TimeMatch {
	return &TimeMatch{
		Start:      now.AddDate(0, 0, -days),
		End:        now,
		Days:       days,
		Period:     period,
		Confidence: conf,
		Source:     source,
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

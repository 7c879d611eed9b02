// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package models

import (
	"sort"
	"strconv"
	"strings"
)

// FilterSpec restricts which events a subscription receives.
// Every populated field must admit the event; empty sets admit everything.
type FilterSpec struct {
	Severities      []Severity `json:"severities,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	MinScore        *float64   `json:"minScore,omitempty" validate:"omitempty,gte=0,lte=1"`
	SourceAddresses []string   `json:"sourceAddresses,omitempty"`
}

// IsEmpty reports whether the filter admits every event.
func (f *FilterSpec) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.Severities) == 0 && len(f.Categories) == 0 &&
		f.MinScore == nil && len(f.SourceAddresses) == 0
}

// Clone returns a deep copy so callers cannot mutate a registered filter.
func (f *FilterSpec) Clone() *FilterSpec {
	if f == nil {
		return nil
	}
	out := &FilterSpec{
		Severities:      append([]Severity(nil), f.Severities...),
		Categories:      append([]string(nil), f.Categories...),
		SourceAddresses: append([]string(nil), f.SourceAddresses...),
	}
	if f.MinScore != nil {
		v := *f.MinScore
		out.MinScore = &v
	}
	return out
}

// Fingerprint returns a canonical string identifying the filter's semantics.
// Two filters with the same fingerprint admit exactly the same events.
func (f *FilterSpec) Fingerprint() string {
	if f.IsEmpty() {
		return "*"
	}

	sev := make([]string, 0, len(f.Severities))
	for _, s := range f.Severities {
		sev = append(sev, strconv.Itoa(int(s)))
	}
	sort.Strings(sev)

	cats := append([]string(nil), f.Categories...)
	sort.Strings(cats)
	srcs := append([]string(nil), f.SourceAddresses...)
	sort.Strings(srcs)

	threshold := ""
	if f.MinScore != nil {
		threshold = strconv.FormatFloat(*f.MinScore, 'g', -1, 64)
	}

	var b strings.Builder
	b.WriteString("s=")
	b.WriteString(strings.Join(sev, ","))
	b.WriteString("|c=")
	writeLengthPrefixed(&b, cats)
	b.WriteString("|m=")
	b.WriteString(threshold)
	b.WriteString("|a=")
	writeLengthPrefixed(&b, srcs)
	return b.String()
}

// writeLengthPrefixed writes each value as <len>:<value> so that no choice of
// value bytes can make two different lists encode the same.
func writeLengthPrefixed(b *strings.Builder, values []string) {
	for _, v := range values {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
}

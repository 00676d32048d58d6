// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package redact finds credentials and personal data in text and removes
// credentials from prompts before they are sent to a language model.
package redact

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var embeddedPatterns []byte

// Public is the classification of text that matches no pattern.
const Public = "public"

// Confidence rates how likely a match is a true positive.
type Confidence string

const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

// UnmarshalYAML rejects unknown confidence levels.
func (c *Confidence) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Confidence(s) {
	case High, Medium, Low:
		*c = Confidence(s)
		return nil
	default:
		return fmt.Errorf("invalid confidence %q", s)
	}
}

// Pattern is one detection rule.
type Pattern struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	Regex       string     `yaml:"regex"`
	Confidence  Confidence `yaml:"confidence"`

	re *regexp.Regexp
}

// Classification groups patterns under a sensitivity class.
type Classification struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Priority    int       `yaml:"priority"`
	Redact      bool      `yaml:"redact"`
	Patterns    []Pattern `yaml:"patterns"`
}

type patternFile struct {
	Classifications []Classification `yaml:"classifications"`
}

// Finding is one match. The matched text itself is not kept so findings
// can be logged.
type Finding struct {
	Line           int
	Classification string
	PatternID      string
	Confidence     Confidence
	Length         int
	Redacted       bool
}

// Guard holds compiled classifications ordered by priority.
//
// # Thread Safety
//
// A Guard is immutable after construction and safe for concurrent use.
type Guard struct {
	classes []Classification
}

// New returns a Guard over the built-in patterns.
func New() (*Guard, error) {
	return Load(embeddedPatterns)
}

// Load parses and compiles a pattern file.
//
// # Outputs
//
//   - *Guard: Classifications sorted from highest to lowest priority.
//   - error: Malformed YAML, an unknown confidence or an invalid regex.
func Load(data []byte) (*Guard, error) {
	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing redaction patterns: %w", err)
	}
	for i := range file.Classifications {
		for j := range file.Classifications[i].Patterns {
			p := &file.Classifications[i].Patterns[j]
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %s: %w", p.ID, err)
			}
			p.re = re
		}
	}
	slices.SortStableFunc(file.Classifications, func(a, b Classification) int {
		return b.Priority - a.Priority
	})
	return &Guard{classes: file.Classifications}, nil
}

// Classify returns the name of the highest priority classification that
// matches text, or Public.
func (g *Guard) Classify(text string) string {
	for _, c := range g.classes {
		for _, p := range c.Patterns {
			if p.re.MatchString(text) {
				return c.Name
			}
		}
	}
	return Public
}

// Scan reports every match, line by line.
func (g *Guard) Scan(text string) []Finding {
	var findings []Finding
	for n, line := range strings.Split(text, "\n") {
		for _, c := range g.classes {
			for _, p := range c.Patterns {
				for _, m := range p.re.FindAllString(line, -1) {
					findings = append(findings, Finding{
						Line:           n + 1,
						Classification: c.Name,
						PatternID:      p.ID,
						Confidence:     p.Confidence,
						Length:         len(m),
						Redacted:       c.Redact,
					})
				}
			}
		}
	}
	return findings
}

// Redact replaces the matches of redacting classifications with a
// [REDACTED:<pattern>] marker.
//
// # Outputs
//
//   - string: text with credentials replaced.
//   - []Finding: Every finding of the original text, including the ones
//     that were only reported.
func (g *Guard) Redact(text string) (string, []Finding) {
	findings := g.Scan(text)
	if len(findings) == 0 {
		return text, nil
	}
	out := text
	for _, c := range g.classes {
		if !c.Redact {
			continue
		}
		for _, p := range c.Patterns {
			out = p.re.ReplaceAllLiteralString(out, "[REDACTED:"+p.ID+"]")
		}
	}
	return out, findings
}

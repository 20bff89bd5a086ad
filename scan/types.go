package scan

import (
	"time"
)

// Impact is the severity of a violation. Higher ranks are more severe.
type Impact string

const (
	Critical Impact = "critical"
	Serious  Impact = "serious"
	Moderate Impact = "moderate"
	Minor    Impact = "minor"
)

// Rank orders impacts: critical 4, serious 3, moderate 2, minor 1, unknown 0.
func (i Impact) Rank() int {
	switch i {
	case Critical:
		return 4
	case Serious:
		return 3
	case Moderate:
		return 2
	case Minor:
		return 1
	}
	return 0
}

// ViolationNode is one rendered occurrence of a violation. HTML is the
// serialised DOM snippet; there is no reference to source files.
type ViolationNode struct {
	HTML           string   `json:"html"`
	Target         []string `json:"target"`
	FailureSummary string   `json:"failureSummary"`
}

// Selector returns the innermost target selector, or "".
func (n ViolationNode) Selector() string {
	if len(n.Target) == 0 {
		return ""
	}
	return n.Target[len(n.Target)-1]
}

// Violation is one rule failure on a page, possibly at several nodes.
type Violation struct {
	ID          string          `json:"id"`
	Impact      Impact          `json:"impact"`
	Description string          `json:"description"`
	Help        string          `json:"help,omitempty"`
	HelpURL     string          `json:"helpUrl"`
	Tags        []string        `json:"tags"`
	Nodes       []ViolationNode `json:"nodes"`
}

// Summary counts violations by impact.
type Summary struct {
	Critical int `json:"critical"`
	Serious  int `json:"serious"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
	Total    int `json:"total"`
}

// Summarise counts violations (not nodes) per impact.
func Summarise(vs []Violation) Summary {
	var s Summary
	for _, v := range vs {
		switch v.Impact {
		case Critical:
			s.Critical++
		case Serious:
			s.Serious++
		case Moderate:
			s.Moderate++
		case Minor:
			s.Minor++
		}
	}
	s.Total = len(vs)
	return s
}

// Status of a PageResult.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PageResult is the audit outcome for one crawled page. It is built once
// and never modified afterwards.
type PageResult struct {
	ID           string      `json:"id"`
	URL          string      `json:"url"`
	Timestamp    time.Time   `json:"timestamp"`
	Status       Status      `json:"status"`
	Violations   []Violation `json:"violations"`
	Passes       int         `json:"passes"`
	Incomplete   int         `json:"incomplete"`
	Inapplicable int         `json:"inapplicable"`
	Summary      Summary     `json:"summary"`
	Depth        int         `json:"depth"`
	Error        string      `json:"error,omitempty"`
}

// AuditResult is what an Auditor returns for one page.
type AuditResult struct {
	Violations   []Violation
	Passes       int
	Incomplete   int
	Inapplicable int
}

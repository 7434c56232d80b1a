package model

import (
	"time"
)

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "easy"
	DifficultyMedium ProblemDifficulty = "medium"
	DifficultyHard   ProblemDifficulty = "hard"
)

func (d ProblemDifficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Problem struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Slug               string              `json:"slug"`
	Description        string              `json:"description"`
	Difficulty         ProblemDifficulty   `json:"difficulty"`
	Tags               []string            `json:"tags"`
	VisibleTestCases   []VisibleTestCase   `json:"visible_test_cases"`
	HiddenTestCases    []TestCase          `json:"hidden_test_cases,omitempty"`   // Admin only view
	StartCode          []StartCode         `json:"start_code,omitempty"`
	ReferenceSolutions []ReferenceSolution `json:"reference_solutions,omitempty"` // Admin only view
	CreatedByID        *string             `json:"created_by_id,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// VisibleTestCase is shown to users and used by the "run" path.
type VisibleTestCase struct {
	Input       string  `json:"input"`
	Output      string  `json:"output"`
	Explanation *string `json:"explanation,omitempty"`
}

// TestCase is the judged unit: stdin plus the exact expected stdout.
type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type StartCode struct {
	Language    string `json:"language"`
	InitialCode string `json:"initial_code"`
}

type ReferenceSolution struct {
	Language     string `json:"language"`
	CompleteCode string `json:"complete_code"`
}

type ProblemSummary struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Slug       string            `json:"slug"`
	Difficulty ProblemDifficulty `json:"difficulty"`
	Tags       []string          `json:"tags"`
}

// VisibleCases returns the visible cases in judged form, order preserved.
func (p *Problem) VisibleCases() []TestCase {
	cases := make([]TestCase, len(p.VisibleTestCases))
	for i, tc := range p.VisibleTestCases {
		cases[i] = TestCase{Input: tc.Input, Output: tc.Output}
	}
	return cases
}

func (p *Problem) Summary() ProblemSummary {
	return ProblemSummary{ID: p.ID, Title: p.Title, Slug: p.Slug, Difficulty: p.Difficulty, Tags: p.Tags}
}

// PublicView strips hidden cases and reference solutions.
func (p *Problem) PublicView() *Problem {
	view := *p
	view.HiddenTestCases = nil
	view.ReferenceSolutions = nil
	return &view
}

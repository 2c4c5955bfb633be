package model

import "github.com/google/uuid"

// DuplicatePass names the detection pass that established a group membership.
type DuplicatePass string

const (
	PassExact      DuplicatePass = "exact"
	PassStructural DuplicatePass = "structural"
	PassSemantic   DuplicatePass = "semantic"
)

// DuplicateMember is one occurrence of the duplicated code.
type DuplicateMember struct {
	FilePath     string `json:"file_path"`
	FunctionName string `json:"function_name,omitempty"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
}

// DuplicateGroup clusters two or more occurrences of the same code.
// Membership is transitive: if A matches B and B matches C, all three share
// one group. Pass records the strongest pass that linked any pair in the
// group; Similarity is the lowest pairwise score observed (1.0 for exact).
type DuplicateGroup struct {
	ID         uuid.UUID         `json:"id"`
	Pass       DuplicatePass     `json:"pass"`
	Similarity float64           `json:"similarity"`
	Members    []DuplicateMember `json:"members"`
	IssueIDs   []uuid.UUID       `json:"issue_ids"`
}

// Size returns the number of occurrences in the group.
func (g *DuplicateGroup) Size() int {
	return len(g.Members)
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies one changed line in a refactoring diff.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeModify ChangeType = "modify"
	ChangeRemove ChangeType = "remove"
)

// Change is one line-level edit between original and refactored code.
// Line is 1-based: in the refactored text for add/modify, in the original
// text for remove.
type Change struct {
	Line    int        `json:"line"`
	Type    ChangeType `json:"type"`
	Content string     `json:"content,omitempty"`
}

// LayerStatus is the outcome of one verification layer.
type LayerStatus string

const (
	LayerPass    LayerStatus = "pass"
	LayerWarning LayerStatus = "warning"
	LayerFail    LayerStatus = "fail"
)

// ValidationLayer records one named validation step the verifier ran, in
// order. The layers are the complete audit trail for the badge.
type ValidationLayer struct {
	Name   string      `json:"name"`
	Status LayerStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// Badge is the trust label assigned to a suggestion after verification.
type Badge string

const (
	BadgeVerified Badge = "verified"
	BadgeWarning  Badge = "warning"
	BadgeFailed   Badge = "failed"
)

// BadgeFor derives the badge from the recorded layers: any failure means
// failed, all passes mean verified, anything else is warning. The badge is a
// pure function of the layers; callers must not set it independently.
func BadgeFor(layers []ValidationLayer) Badge {
	if len(layers) == 0 {
		return BadgeFailed
	}
	badge := BadgeVerified
	for _, l := range layers {
		switch l.Status {
		case LayerFail:
			return BadgeFailed
		case LayerWarning:
			badge = BadgeWarning
		}
	}
	return badge
}

// SuggestionStatus tracks the review decision on a suggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// RefactoringSuggestion pairs a candidate rewrite for one issue with its
// verification outcome. Changes are derivable purely from OriginalCode and
// RefactoredCode; Badge is derivable purely from Layers.
type RefactoringSuggestion struct {
	ID      uuid.UUID `json:"id"`
	IssueID uuid.UUID `json:"issue_id"`

	FilePath       string `json:"file_path"`
	OriginalCode   string `json:"original_code"`
	RefactoredCode string `json:"refactored_code"`
	Explanation    string `json:"explanation,omitempty"`

	Confidence int               `json:"confidence"` // 0-100
	Changes    []Change          `json:"changes"`
	Layers     []ValidationLayer `json:"validation_layers"`
	Badge      Badge             `json:"verification_badge"`
	IsVerified bool              `json:"is_verified"`

	Status    SuggestionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// CountChanges returns the number of changes per type.
func (s *RefactoringSuggestion) CountChanges() map[ChangeType]int {
	counts := make(map[ChangeType]int, 3)
	for _, c := range s.Changes {
		counts[c.Type]++
	}
	return counts
}

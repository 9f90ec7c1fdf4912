package period

// Severity ranks validation findings. RED blocks finalization outright;
// YELLOW must be acknowledged explicitly.
type Severity string

const (
	SeverityRed    Severity = "RED"
	SeverityYellow Severity = "YELLOW"
)

// Issue is one finding from a period validation run.
type Issue struct {
	Severity    Severity `json:"severity"`
	Code        string   `json:"code"`
	Description string   `json:"description"`
	EntryID     string   `json:"entry_id,omitempty"`
}

// Issue codes produced by the ledger's validation run.
const (
	IssueUnbalancedEntry = "unbalanced_entry"
	IssueStaleDraft      = "stale_draft"
	IssueMissingRef      = "missing_reference"
	IssueOpenItemStale   = "open_item_integrity"
)

// Gate decides whether a period can finalize given the issues found right
// now. "Can finalize" is computed, never stored: the issue list is always
// re-evaluated at finalization time so a period cannot go stale-clean
// between review and finalization.
func Gate(issues []Issue, acknowledged []string) (blocking []Issue) {
	acked := make(map[string]bool, len(acknowledged))
	for _, code := range acknowledged {
		acked[code] = true
	}
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityRed:
			blocking = append(blocking, issue)
		case SeverityYellow:
			if !acked[issue.Code] {
				blocking = append(blocking, issue)
			}
		}
	}
	return blocking
}

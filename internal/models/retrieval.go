package models

import "time"

// Query is one ephemeral chat request, always processed synchronously into a
// GovernanceDecision. TenantID is derived from the assistant, never from the
// caller.
type Query struct {
	AssistantID string
	TenantID    string
	SessionID   string
	Text        string
}

// EvidenceItem is one retrieved chunk with its normalized relevance score.
type EvidenceItem struct {
	ChunkID     string
	AssistantID string
	TenantID    string
	SourceURL   string
	Title       string
	Text        string
	Intent      string
	Score       float64
	Rank        int
	CreatedAt   time.Time
}

// Evidence is the ranked retrieval result for one query. An empty value is the
// explicit no-context marker, not an error.
type Evidence []EvidenceItem

func (e Evidence) Empty() bool { return len(e) == 0 }

// Top returns the highest-ranked item; callers must check Empty first.
func (e Evidence) Top() EvidenceItem { return e[0] }

// Sources maps evidence to citation metadata preserving retrieval order,
// collapsing repeated URLs.
func (e Evidence) Sources() SourceList {
	sources := make(SourceList, 0, len(e))
	seen := make(map[string]bool, len(e))
	for _, item := range e {
		if seen[item.SourceURL] {
			continue
		}
		seen[item.SourceURL] = true
		sources = append(sources, Source{
			URL:    item.SourceURL,
			Title:  item.Title,
			Intent: item.Intent,
		})
	}
	return sources
}

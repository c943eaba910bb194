package history

import "sync"

// Expansion tracks which history record is shown expanded. At most one
// record is expanded at a time.
type Expansion struct {
	mu       sync.Mutex
	expanded string
}

// Toggle expands id, collapsing any other record, or collapses id when it
// is already expanded. It reports whether id is now expanded.
func (e *Expansion) Toggle(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.expanded == id {
		e.expanded = ""
		return false
	}
	e.expanded = id
	return true
}

// Expanded returns the expanded record id, or "" when all are collapsed.
func (e *Expansion) Expanded() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expanded
}

// IsExpanded reports whether id is the expanded record.
func (e *Expansion) IsExpanded(id string) bool {
	return id != "" && e.Expanded() == id
}

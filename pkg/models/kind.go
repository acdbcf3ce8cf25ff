package models

import "strings"

// EntityKind names one synchronized collection. The string value is also the
// CLI selector and the metrics label.
type EntityKind string

const (
	KindPeople      EntityKind = "people"
	KindClients     EntityKind = "clients"
	KindTasks       EntityKind = "tasks"
	KindProjects    EntityKind = "projects"
	KindTimeEntries EntityKind = "time_entries"
	KindAssignments EntityKind = "assignments"
)

// AllKinds is the stage order of a run. Dimensions come before facts.
var AllKinds = []EntityKind{
	KindPeople,
	KindClients,
	KindTasks,
	KindProjects,
	KindTimeEntries,
	KindAssignments,
}

var kindAliases = map[string]EntityKind{
	"people":       KindPeople,
	"person":       KindPeople,
	"clients":      KindClients,
	"client":       KindClients,
	"tasks":        KindTasks,
	"task":         KindTasks,
	"projects":     KindProjects,
	"project":      KindProjects,
	"time_entries": KindTimeEntries,
	"time_entry":   KindTimeEntries,
	"timeentries":  KindTimeEntries,
	"entries":      KindTimeEntries,
	"assignments":  KindAssignments,
	"assignment":   KindAssignments,
}

// ParseKind accepts the canonical name, singular forms and dashed spellings.
func ParseKind(value string) (EntityKind, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	kind, ok := kindAliases[normalized]
	return kind, ok
}

// Table is the warehouse table backing the kind.
func (k EntityKind) Table() string {
	switch k {
	case KindTimeEntries:
		return "time_entries"
	case KindAssignments:
		return "time_assignments"
	default:
		return string(k)
	}
}

// Label is the record name used in run log descriptions.
func (k EntityKind) Label() string {
	switch k {
	case KindPeople:
		return "Person Entry"
	case KindClients:
		return "Client Entry"
	case KindTasks:
		return "Task Entry"
	case KindProjects:
		return "Project Entry"
	case KindTimeEntries:
		return "Time Entry"
	case KindAssignments:
		return "Time Assignment"
	default:
		return string(k)
	}
}

// IsDimension reports whether rows of this kind are referenced by facts.
func (k EntityKind) IsDimension() bool {
	switch k {
	case KindPeople, KindClients, KindTasks, KindProjects:
		return true
	}
	return false
}

// HasDualIdentity reports whether the kind exists in both sources.
func (k EntityKind) HasDualIdentity() bool {
	switch k {
	case KindPeople, KindClients, KindProjects:
		return true
	}
	return false
}

// Index returns the stage position of the kind, or -1.
func (k EntityKind) Index() int {
	for i, kind := range AllKinds {
		if kind == k {
			return i
		}
	}
	return -1
}

package aggregator

import (
	"fmt"
	"strings"
)

const (
	NoActivity  = "No Activity"
	NoProject   = "No Project"
	UnknownUser = "Unknown User"
	Unassigned  = "Unassigned"
)

// ProjectLabel selects how projects are keyed in a tree.
type ProjectLabel int

const (
	ProjectIdentifier ProjectLabel = iota
	// ProjectNameAndIdentifier renders "Name (identifier)".
	ProjectNameAndIdentifier
)

// ActivityLabel is the free-text comment when present, otherwise the
// activity name, otherwise NoActivity.
func ActivityLabel(comments, activityName string) string {
	if c := strings.TrimSpace(comments); c != "" {
		return c
	}
	if a := strings.TrimSpace(activityName); a != "" {
		return a
	}
	return NoActivity
}

func ProjectKey(identifier, name string, style ProjectLabel) string {
	identifier = strings.TrimSpace(identifier)
	name = strings.TrimSpace(name)
	if identifier == "" && name == "" {
		return NoProject
	}
	if style == ProjectNameAndIdentifier && name != "" && identifier != "" {
		return fmt.Sprintf("%s (%s)", name, identifier)
	}
	if identifier == "" {
		return name
	}
	return identifier
}

func personLabel(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return UnknownUser
}

func piLabel(pi string) string {
	if p := strings.TrimSpace(pi); p != "" {
		return p
	}
	return Unassigned
}

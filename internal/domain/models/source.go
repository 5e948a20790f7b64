package models

import "fmt"

// Source records the provenance of a version: created by the system after a
// successful generation plan, requested explicitly by the user, or
// materialized by a rollback.
type Source string

const (
	SourceAuto     Source = "auto"
	SourceManual   Source = "manual"
	SourceRollback Source = "rollback"
)

// ParseSource converts a wire value into a Source.
// An empty value defaults to SourceAuto (mutations driven by the chat
// orchestrator carry no explicit source).
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "":
		return SourceAuto, nil
	case SourceAuto, SourceManual, SourceRollback:
		return Source(s), nil
	default:
		return "", fmt.Errorf("unknown version source %q", s)
	}
}

// Valid reports whether the source is one of the closed set.
func (s Source) Valid() bool {
	switch s {
	case SourceAuto, SourceManual, SourceRollback:
		return true
	default:
		return false
	}
}

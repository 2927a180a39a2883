package models

import "strings"

// SimStatus is the closed domain of SIM_STATUS_CHANGE.
type SimStatus string

const (
	StatusActivated    SimStatus = "Activated"
	StatusSuspended    SimStatus = "Suspended"
	StatusTerminated   SimStatus = "Terminated"
	StatusPreActivated SimStatus = "Pre-Activated"
)

// SimStatuses in the order the parameter list publishes them.
var SimStatuses = []SimStatus{StatusActivated, StatusSuspended, StatusTerminated, StatusPreActivated}

var transitions = map[SimStatus][]SimStatus{
	StatusPreActivated: {StatusActivated},
	StatusActivated:    {StatusSuspended, StatusTerminated},
	StatusSuspended:    {StatusActivated, StatusTerminated},
	StatusTerminated:   nil,
}

func (s SimStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseSimStatus accepts the canonical names case-insensitively, plus the
// legacy "Active"/"Pre-Active" spellings older simulator databases stored.
func ParseSimStatus(v string) (SimStatus, bool) {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "active":
		return StatusActivated, true
	case "pre-active":
		return StatusPreActivated, true
	}
	for _, s := range SimStatuses {
		if strings.EqualFold(v, string(s)) {
			return s, true
		}
	}
	return "", false
}

// CanTransition reports whether from -> to is allowed. Staying in the same
// state is allowed so that repeated status changes are idempotent.
func CanTransition(from, to SimStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

package domain

import "sort"

// Status is the lifecycle state of a case.
type Status string

const (
	// StatusNone is the state of a case that has not been submitted yet.
	StatusNone             Status = ""
	StatusSubmitted        Status = "submitted"
	StatusAnalyzing        Status = "analyzing"
	StatusPendingAdvocate  Status = "pending_advocate"
	StatusAdvocateAssigned Status = "advocate_assigned"
	StatusInProgress       Status = "in_progress"
	StatusOnHold           Status = "on_hold"
	StatusResolved         Status = "resolved"
	StatusClosed           Status = "closed"
	StatusWithdrawn        Status = "withdrawn"
)

// Terminal reports whether no action can leave s.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusWithdrawn
}

// Valid reports whether s is a known persisted status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok && s != StatusNone
}

// Action names an operation of the state machine.
type Action string

const (
	ActionSubmit                Action = "submit"
	ActionStartAnalysis         Action = "start_analysis"
	ActionCompleteAnalysis      Action = "complete_analysis"
	ActionRecordRecommendations Action = "record_recommendations"
	ActionHire                  Action = "hire"
	ActionStart                 Action = "start"
	ActionHold                  Action = "hold"
	ActionResume                Action = "resume"
	ActionResolve               Action = "resolve"
	ActionClose                 Action = "close"
	ActionWithdraw              Action = "withdraw"
)

// transitions is the complete lifecycle: current status x action -> next
// status. Anything absent is rejected.
var transitions = map[Status]map[Action]Status{
	StatusNone: {
		ActionSubmit: StatusSubmitted,
	},
	StatusSubmitted: {
		ActionStartAnalysis:    StatusAnalyzing,
		ActionCompleteAnalysis: StatusPendingAdvocate,
		ActionWithdraw:         StatusWithdrawn,
	},
	StatusAnalyzing: {
		ActionCompleteAnalysis: StatusPendingAdvocate,
		ActionWithdraw:         StatusWithdrawn,
	},
	StatusPendingAdvocate: {
		ActionRecordRecommendations: StatusPendingAdvocate,
		ActionHire:                  StatusAdvocateAssigned,
		ActionWithdraw:              StatusWithdrawn,
	},
	StatusAdvocateAssigned: {
		ActionStart:    StatusInProgress,
		ActionWithdraw: StatusWithdrawn,
	},
	StatusInProgress: {
		ActionHold:    StatusOnHold,
		ActionResolve: StatusResolved,
	},
	StatusOnHold: {
		ActionResume:  StatusInProgress,
		ActionResolve: StatusResolved,
	},
	StatusResolved: {
		ActionClose: StatusClosed,
	},
	StatusClosed:    {},
	StatusWithdrawn: {},
}

// Next looks up the status reached by applying action in from.
func Next(from Status, action Action) (Status, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// AllowedActions lists the actions valid in s, sorted by name.
func AllowedActions(s Status) []Action {
	actions := make([]Action, 0, len(transitions[s]))
	for action := range transitions[s] {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// Priority orders cases for triage.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// OutcomeResult is how a resolved case ended.
type OutcomeResult string

const (
	OutcomeSuccess OutcomeResult = "success"
	OutcomePartial OutcomeResult = "partial"
	OutcomeFailure OutcomeResult = "failure"
)

// Valid reports whether r is a known outcome.
func (r OutcomeResult) Valid() bool {
	switch r {
	case OutcomeSuccess, OutcomePartial, OutcomeFailure:
		return true
	}
	return false
}

// Urgency levels produced by case analysis.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// ValidUrgency reports whether level is one of the four urgency levels.
func ValidUrgency(level string) bool {
	switch level {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

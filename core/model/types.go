package model

import "fmt"

// FlexibilityType describes how a workload may be shifted in time or power.
type FlexibilityType string

const (
	FlexibilityFixed       FlexibilityType = "fixed"
	FlexibilityDeferrable  FlexibilityType = "deferrable"
	FlexibilityPausable    FlexibilityType = "pausable"
	FlexibilityThrottlable FlexibilityType = "throttlable"
)

// ParseFlexibilityType converts a lowercase tag into a FlexibilityType.
func ParseFlexibilityType(s string) (FlexibilityType, error) {
	switch FlexibilityType(s) {
	case FlexibilityFixed, FlexibilityDeferrable, FlexibilityPausable, FlexibilityThrottlable:
		return FlexibilityType(s), nil
	}
	return "", fmt.Errorf("unknown flexibility type: %s", s)
}

// IsFlexible reports whether the workload can be deferred at all.
func (f FlexibilityType) IsFlexible() bool { return f != FlexibilityFixed }

// Priority ranks jobs for batch scheduling.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Priorities lists all levels, most urgent first.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// ParsePriority converts a lowercase tag into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority: %s", s)
}

// Rank returns the ordering index of the priority, critical first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

// JobStatus is a state in the job lifecycle machine.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusScheduled JobStatus = "scheduled"
	StatusRunning   JobStatus = "running"
	StatusPaused    JobStatus = "paused"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// JobStatuses lists every lifecycle state.
var JobStatuses = []JobStatus{
	StatusPending, StatusScheduled, StatusRunning, StatusPaused,
	StatusCompleted, StatusFailed, StatusCancelled,
}

// ParseJobStatus converts a lowercase tag into a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	for _, st := range JobStatuses {
		if JobStatus(s) == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown job status: %s", s)
}

// Terminal reports whether the state admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether the lifecycle machine allows moving from
// s to next. PENDING → SCHEDULED → RUNNING → {COMPLETED|FAILED}, with
// cancellation from any non-terminal state except PAUSED and the
// PAUSED ↔ RUNNING pair as the only reversible branch.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusScheduled || next == StatusCancelled
	case StatusScheduled:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed ||
			next == StatusCancelled || next == StatusPaused
	case StatusPaused:
		return next == StatusRunning
	default:
		return false
	}
}

package models

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusDraft      TaskStatus = "Draft"
	StatusOnProgress TaskStatus = "On Progress"
	StatusCompleted  TaskStatus = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOnProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Display renders the status for the read path. Rows written before the
// status column gained its default can carry an empty value, so an unknown
// or empty status renders as "Unknown" instead of leaking raw data.
func (s TaskStatus) Display() string {
	if !s.Valid() {
		return "Unknown"
	}
	return string(s)
}

// CanTransition reports whether a task may move from s to next. Tasks walk
// Draft -> On Progress -> Completed. On Progress may fall back to Draft.
// Completed is terminal; leaving it requires the explicit reopen operation,
// which is modeled separately and not as a regular transition.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusDraft:
		return next == StatusOnProgress
	case StatusOnProgress:
		return next == StatusCompleted || next == StatusDraft
	default:
		return false
	}
}

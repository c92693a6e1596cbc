package billing

import "time"

// Status is the derived lifecycle state of one statement. It is never
// stored: the three predicates below partition time exactly, so the
// state is recomputed on every read.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusOverdue Status = "overdue"
)

// StatusAt derives the statement status for a given day. Boundary
// instants belong to the earlier state: the closing day is still
// open, the due day is still closed.
func (c Cycle) StatusAt(today time.Time) Status {
	d := DateOnly(today)
	switch {
	case !d.After(c.Closing):
		return StatusOpen
	case !d.After(c.Due):
		return StatusClosed
	default:
		return StatusOverdue
	}
}

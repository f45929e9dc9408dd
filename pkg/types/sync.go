package types

import (
	"fmt"
	"time"
)

// SyncMode selects the reconciliation policy.
type SyncMode string

// Sync modes.
const (
	SyncDate  SyncMode = "date"
	SyncLocal SyncMode = "local"
	SyncGist  SyncMode = "gist"
)

// ParseSyncMode validates a mode name.
func ParseSyncMode(s string) (SyncMode, error) {
	switch m := SyncMode(s); m {
	case SyncDate, SyncLocal, SyncGist:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (want date, local or gist)", ErrInvalidMode, s)
}

// Side names where a sync action is applied.
type Side string

// Sides of a sync.
const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Op is a sync action kind.
type Op string

// Sync action kinds.
const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Counts tallies applied actions on one side.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Total returns the number of applied actions.
func (c Counts) Total() int {
	return c.Created + c.Updated + c.Deleted
}

func (c *Counts) add(op Op) {
	switch op {
	case OpCreate:
		c.Created++
	case OpUpdate:
		c.Updated++
	case OpDelete:
		c.Deleted++
	}
}

// Failure is one action that could not be applied.
type Failure struct {
	ID     uint64 `json:"id"`
	Side   Side   `json:"side"`
	Op     Op     `json:"op"`
	Reason string `json:"reason"`
}

// Report summarizes one sync run.
type Report struct {
	RunID  string   `json:"run_id"`
	Mode   SyncMode `json:"mode"`
	DryRun bool     `json:"dry_run,omitempty"`
	// PreviousSync is the remote timestamp stored by the previous run.
	PreviousSync *time.Time    `json:"previous_sync,omitempty"`
	Local        Counts        `json:"local"`
	Remote       Counts        `json:"remote"`
	UpToDate     int           `json:"up_to_date"`
	Conflicts    []uint64      `json:"conflicts,omitempty"`
	Failures     []Failure     `json:"failures,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Record counts a successful action.
func (r *Report) Record(side Side, op Op) {
	if side == SideLocal {
		r.Local.add(op)
		return
	}
	r.Remote.add(op)
}

// Actions returns the number of applied actions on both sides.
func (r *Report) Actions() int {
	return r.Local.Total() + r.Remote.Total()
}

// Failed reports whether any action failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

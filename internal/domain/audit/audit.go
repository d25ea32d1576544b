// Package audit defines the audit trail record emitted for every read and
// write of an MFI or branch.
package audit

import "time"

// Event names.
const (
	MFICreate       = "mfi_create"
	MFIView         = "view_mfi"
	MFIUpdate       = "mfi_update"
	MFIStatusUpdate = "mfi_status_update"
	MFIDelete       = "mfi_delete"

	BranchCreate       = "branch_create"
	BranchView         = "view_branch"
	BranchUpdate       = "branch_update"
	BranchStatusUpdate = "branch_status_update"
	BranchDelete       = "branch_delete"
)

// Event is a single audit log entry. Diff holds the changed fields of an
// update keyed by column name.
type Event struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Actor     string         `json:"actor"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Diff      map[string]any `json:"diff,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

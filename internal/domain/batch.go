package domain

// BatchOp distinguishes report submissions from withdrawals inside a batch.
type BatchOp string

const (
	OpReport BatchOp = "report"
	OpRemove BatchOp = "remove"
)

// BatchEntry is one queued operation sent to the server.
type BatchEntry struct {
	Op           BatchOp `json:"op" validate:"required,oneof=report remove"`
	ItemID       string  `json:"itemId" validate:"required,max=128"`
	CollectionID string  `json:"collectionId" validate:"max=128"`
	ReporterID   string  `json:"reporterId" validate:"required,max=128"`
}

// EntryStatus is the server's disposition of a single batch entry.
type EntryStatus string

const (
	StatusAccepted  EntryStatus = "accepted"
	StatusDuplicate EntryStatus = "duplicate"
	StatusRejected  EntryStatus = "rejected"
	StatusNotFound  EntryStatus = "not_found"
	StatusError     EntryStatus = "error"
)

// EntryResult carries the per-entry outcome of a batch.
type EntryResult struct {
	Index  int         `json:"index"`
	ItemID string      `json:"itemId"`
	Status EntryStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// Settled reports whether the entry needs no further submission attempts.
func (r EntryResult) Settled() bool {
	return r.Status != StatusError
}

// LocalReportStatus is what the UI is told about a report it made.
type LocalReportStatus string

const (
	LocalNone      LocalReportStatus = ""
	LocalPending   LocalReportStatus = "pending"
	LocalConfirmed LocalReportStatus = "confirmed"
	LocalFailed    LocalReportStatus = "failed"
)

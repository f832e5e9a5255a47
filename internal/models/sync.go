package models

// SyncPhase classifies a sync status notification.
type SyncPhase int

const (
	SyncIdle SyncPhase = iota
	SyncUploading
	SyncUploaded
	SyncDownloading
	SyncDownloaded
	SyncSkipped
	SyncFailed
)

// SyncStatus is delivered to the registered status callback after every
// sync attempt. Failures carry the underlying error; they are signals to
// the operator, never fatal to the process.
type SyncStatus struct {
	Phase       SyncPhase
	Message     string
	RecordCount int
	Err         error
}

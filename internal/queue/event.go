// Package queue moves activity events through RabbitMQ: the publisher used
// by the services and the consumer that writes logs/activity.log.
package queue

// ActivityQueue is the single durable queue carrying every event kind.
// The AMQP message Type field tells the kinds apart.
const ActivityQueue = "fernid.activity"

const (
	KindScanRecorded = "scan.recorded"
	KindUserDeleted  = "user.deleted"
)

// ScanRecordedEvent is published after a scan row has been written.
type ScanRecordedEvent struct {
	ScanID     string  `json:"scan_id"`
	UserID     string  `json:"user_id"`
	IsPlant    bool    `json:"is_plant"`
	IsFern     bool    `json:"is_fern"`
	Species    string  `json:"species,omitempty"`
	Confidence float64 `json:"confidence"`
	RecordedAt string  `json:"recorded_at"`
}

// UserDeletedEvent is published after an admin removed a user together
// with their scans.
type UserDeletedEvent struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	ScansDeleted int    `json:"scans_deleted"`
	DeletedBy    string `json:"deleted_by,omitempty"`
	DeletedAt    string `json:"deleted_at"`
}

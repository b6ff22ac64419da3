package ledger

import "time"

// Status is the lifecycle state of a deployment run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Artifact is one prepared (or reused) model archive.
type Artifact struct {
	ID               int64
	ModelID          string
	CheckpointPath   string
	CheckpointSHA256 string
	CheckpointBytes  int64
	ArchivePath      string
	ArchiveSHA256    string
	ArchiveBytes     int64
	Reused           bool
	CreatedAt        time.Time
}

// Deployment is one orchestrator run against an endpoint.
type Deployment struct {
	ID                 int64
	ArtifactID         int64
	EndpointName       string
	ModelName          string
	EndpointConfigName string
	ModelDataURL       string
	RoleARN            string
	ImageURI           string
	InstanceType       string
	// Action is "create" or "update" once the endpoint step ran.
	Action       string
	Status       Status
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Duration reports how long a finished run took.
func (d Deployment) Duration() time.Duration {
	if d.FinishedAt == nil || d.StartedAt.IsZero() {
		return 0
	}
	return d.FinishedAt.Sub(d.StartedAt)
}

package ledger

import (
	"database/sql"
	"errors"
	"time"
)

const (
	artifactColumns   = "id, model_id, checkpoint_path, checkpoint_sha256, checkpoint_bytes, archive_path, archive_sha256, archive_bytes, reused, created_at"
	deploymentColumns = "id, artifact_id, endpoint_name, model_name, endpoint_config_name, model_data_url, role_arn, image_uri, instance_type, action, status, error_message, started_at, finished_at"
	defaultListLimit  = 20
)

type scanner interface{ Scan(dest ...any) error }

func scanArtifact(row scanner) (*Artifact, error) {
	var (
		a          Artifact
		ckptSHA    sql.NullString
		reused     int64
		createdRaw string
	)
	if err := row.Scan(
		&a.ID, &a.ModelID, &a.CheckpointPath, &ckptSHA, &a.CheckpointBytes,
		&a.ArchivePath, &a.ArchiveSHA256, &a.ArchiveBytes, &reused, &createdRaw,
	); err != nil {
		return nil, err
	}
	a.CheckpointSHA256 = ckptSHA.String
	a.Reused = reused != 0
	if created, err := parseTimeString(createdRaw); err == nil {
		a.CreatedAt = created
	}
	return &a, nil
}

func scanDeployment(row scanner) (*Deployment, error) {
	var (
		d           Deployment
		artifactID  sql.NullInt64
		modelName   sql.NullString
		configName  sql.NullString
		modelData   sql.NullString
		roleARN     sql.NullString
		imageURI    sql.NullString
		instance    sql.NullString
		action      sql.NullString
		status      string
		errMsg      sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := row.Scan(
		&d.ID, &artifactID, &d.EndpointName, &modelName, &configName, &modelData,
		&roleARN, &imageURI, &instance, &action, &status, &errMsg, &startedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}
	d.ArtifactID = artifactID.Int64
	d.ModelName = modelName.String
	d.EndpointConfigName = configName.String
	d.ModelDataURL = modelData.String
	d.RoleARN = roleARN.String
	d.ImageURI = imageURI.String
	d.InstanceType = instance.String
	d.Action = action.String
	d.Status = Status(status)
	d.ErrorMessage = errMsg.String
	if started, err := parseTimeString(startedRaw); err == nil {
		d.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			d.FinishedAt = &finished
		}
	}
	return &d, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists ledger rows in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the ledger at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordArtifact inserts a new artifact row and returns its id.
func (s *Store) RecordArtifact(ctx context.Context, a Artifact) (int64, error) {
	if a.ArchivePath == "" || a.ArchiveSHA256 == "" {
		return 0, errors.New("artifact requires archive path and digest")
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifacts (
            model_id, checkpoint_path, checkpoint_sha256, checkpoint_bytes,
            archive_path, archive_sha256, archive_bytes, reused, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ModelID,
		a.CheckpointPath,
		nullableString(a.CheckpointSHA256),
		a.CheckpointBytes,
		a.ArchivePath,
		a.ArchiveSHA256,
		a.ArchiveBytes,
		boolToInt(a.Reused),
		formatTime(created),
	)
	if err != nil {
		return 0, fmt.Errorf("insert artifact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// LatestArtifact returns the newest artifact recorded for archivePath, or
// nil when none exists.
func (s *Store) LatestArtifact(ctx context.Context, archivePath string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE archive_path = ? ORDER BY id DESC LIMIT 1`,
		archivePath,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest artifact: %w", err)
	}
	return a, nil
}

// ListArtifacts returns up to limit artifacts, newest first.
func (s *Store) ListArtifacts(ctx context.Context, limit int) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts ORDER BY id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// BeginDeployment records a running deployment and returns its id.
func (s *Store) BeginDeployment(ctx context.Context, d Deployment) (int64, error) {
	if d.EndpointName == "" {
		return 0, errors.New("deployment requires an endpoint name")
	}
	started := d.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO deployments (
            artifact_id, endpoint_name, image_uri, instance_type, status, started_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		nullableID(d.ArtifactID),
		d.EndpointName,
		nullableString(d.ImageURI),
		nullableString(d.InstanceType),
		StatusRunning,
		formatTime(started),
	)
	if err != nil {
		return 0, fmt.Errorf("insert deployment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// FinishDeployment stores the terminal state of a deployment run.
func (s *Store) FinishDeployment(ctx context.Context, d Deployment) error {
	if d.ID == 0 {
		return errors.New("deployment id is required")
	}
	if d.Status == "" || d.Status == StatusRunning {
		return fmt.Errorf("deployment %d: terminal status required, got %q", d.ID, d.Status)
	}
	finished := time.Now().UTC()
	if d.FinishedAt != nil {
		finished = d.FinishedAt.UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE deployments
         SET artifact_id = COALESCE(?, artifact_id), model_name = ?, endpoint_config_name = ?,
             model_data_url = ?, role_arn = ?, action = ?, status = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		nullableID(d.ArtifactID),
		nullableString(d.ModelName),
		nullableString(d.EndpointConfigName),
		nullableString(d.ModelDataURL),
		nullableString(d.RoleARN),
		nullableString(d.Action),
		d.Status,
		nullableString(d.ErrorMessage),
		formatTime(finished),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deployment %d not found", d.ID)
	}
	return nil
}

// GetDeployment fetches a deployment by id, or nil when absent.
func (s *Store) GetDeployment(ctx context.Context, id int64) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deploymentColumns+` FROM deployments WHERE id = ?`, id)
	d, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", err)
	}
	return d, nil
}

// ListDeployments returns up to limit deployments, newest first.
func (s *Store) ListDeployments(ctx context.Context, limit int) ([]Deployment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deploymentColumns+` FROM deployments ORDER BY id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var out []Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ReconcileRunning marks deployments still in the running state as
// interrupted. Callers must hold the deploy lock.
func (s *Store) ReconcileRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = ?, finished_at = ?, error_message = COALESCE(error_message, ?)
         WHERE status = ?`,
		StatusInterrupted,
		formatTime(time.Now().UTC()),
		"process exited before the deployment finished",
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile running deployments: %w", err)
	}
	return res.RowsAffected()
}

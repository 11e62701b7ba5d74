package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type ServerRun struct {
	ID          uuid.UUID
	Environment string
	Port        int32
	StartedAt   time.Time
	StoppedAt   *time.Time
}

const isDatabaseRunning = `-- name: IsDatabaseRunning :one
SELECT true AS running
`

func (q *Queries) IsDatabaseRunning(ctx context.Context) (bool, error) {
	row := q.db.QueryRow(ctx, isDatabaseRunning)
	var running bool
	err := row.Scan(&running)
	return running, err
}

const createServerRun = `-- name: CreateServerRun :one
INSERT INTO server_runs (id, environment, port)
VALUES ($1, $2, $3)
RETURNING id, environment, port, started_at, stopped_at
`

type CreateServerRunParams struct {
	ID          uuid.UUID
	Environment string
	Port        int32
}

func (q *Queries) CreateServerRun(ctx context.Context, arg CreateServerRunParams) (ServerRun, error) {
	row := q.db.QueryRow(ctx, createServerRun, arg.ID, arg.Environment, arg.Port)
	var i ServerRun
	err := row.Scan(
		&i.ID,
		&i.Environment,
		&i.Port,
		&i.StartedAt,
		&i.StoppedAt,
	)
	return i, err
}

const markServerRunStopped = `-- name: MarkServerRunStopped :execrows
UPDATE server_runs
SET stopped_at = now()
WHERE id = $1 AND stopped_at IS NULL
`

func (q *Queries) MarkServerRunStopped(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, markServerRunStopped, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getServerRun = `-- name: GetServerRun :one
SELECT id, environment, port, started_at, stopped_at
FROM server_runs
WHERE id = $1
`

func (q *Queries) GetServerRun(ctx context.Context, id uuid.UUID) (ServerRun, error) {
	row := q.db.QueryRow(ctx, getServerRun, id)
	var i ServerRun
	err := row.Scan(
		&i.ID,
		&i.Environment,
		&i.Port,
		&i.StartedAt,
		&i.StoppedAt,
	)
	return i, err
}

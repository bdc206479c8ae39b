package postgres

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/exercisetracker/internal/db"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
	"github.com/2beens/exercisetracker/internal/tracker"
	"github.com/2beens/exercisetracker/pkg"
)

//go:embed schema.sql
var schemaSQL string

const (
	constraintUniqueUserID = "uq_users_user_id"
	constraintUniqueName   = "uq_users_name"
)

var _ tracker.Store = (*Repo)(nil)

type Repo struct {
	db    *pgxpool.Pool
	newID func() (string, error)
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:    db,
		newID: tracker.GenerateUserID,
	}
}

// Open connects to postgres, verifies the connection and makes sure the schema exists.
// Every failure is reported as tracker.ErrStoreConnection.
func Open(ctx context.Context, params db.NewDBPoolParams) (*Repo, error) {
	connectCtx := ctx
	if params.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, params.ConnectTimeout)
		defer cancel()
	}

	pool, err := db.NewDBPool(connectCtx, params)
	if err != nil {
		return nil, tracker.StoreConnectionErr("new db pool", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, tracker.StoreConnectionErr("ping", err)
	}

	repo := NewRepo(pool)
	if err := repo.Bootstrap(connectCtx); err != nil {
		pool.Close()
		return nil, tracker.StoreConnectionErr("bootstrap schema", err)
	}

	log.Debugf("postgres store open: %s:%s/%s", params.DBHost, params.DBPort, params.DBName)
	return repo, nil
}

// Bootstrap creates missing tables and indexes. It never alters existing ones.
func (r *Repo) Bootstrap(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schemaSQL)
	return err
}

func (r *Repo) Pool() *pgxpool.Pool {
	return r.db
}

func (r *Repo) AddUser(ctx context.Context, name string) (_ *tracker.User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tracker.addUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	user, err := tracker.CreateUser(ctx, name, r.newID, r.insertUser)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.UserID))
	return user, nil
}

func (r *Repo) insertUser(ctx context.Context, user tracker.User) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO users (user_id, name, created_at) VALUES ($1, $2, $3);`,
		user.UserID, user.Name, user.CreatedAt,
	)
	if err == nil {
		return nil
	}

	if constraint, ok := pkg.UniqueViolationConstraint(err); ok {
		switch constraint {
		case constraintUniqueName:
			return &tracker.DuplicateFieldError{Field: tracker.FieldName, Value: user.Name}
		case constraintUniqueUserID:
			return &tracker.DuplicateFieldError{Field: tracker.FieldUserID, Value: user.UserID}
		}
	}
	return tracker.PersistenceErr("insert user", err)
}

func (r *Repo) UserIDExists(ctx context.Context, userID string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tracker.userIdExists")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	var exists bool
	if err := r.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1);`,
		userID,
	).Scan(&exists); err != nil {
		return false, tracker.PersistenceErr("find user", err)
	}

	return exists, nil
}

func (r *Repo) AddExercise(ctx context.Context, exercise tracker.Exercise) (_ *tracker.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tracker.addExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO exercises (user_id, description, duration, exercise_date)
				VALUES ($1, $2, $3, $4)
			RETURNING id;`,
		exercise.UserID, exercise.Description, exercise.Duration, exercise.Date.Time,
	)
	if err != nil {
		return nil, tracker.PersistenceErr("insert exercise", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, tracker.PersistenceErr("insert exercise", err)
		}
		return nil, tracker.PersistenceErr("insert exercise", errors.New("no id returned"))
	}

	var id int64
	if err := rows.Scan(&id); err != nil {
		return nil, tracker.PersistenceErr("insert exercise, scan id", err)
	}

	span.SetAttributes(attribute.Int64("exercise.id", id))
	return &exercise, nil
}

func (r *Repo) GetUserExercises(ctx context.Context, query tracker.LogQuery) (_ *tracker.ExerciseLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tracker.getUserExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", query.UserID))

	sql, args := buildLogQuery(query)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, tracker.PersistenceErr("query exercises", err)
	}
	defer rows.Close()

	var logs []tracker.LogEntry
	for rows.Next() {
		var (
			entry tracker.LogEntry
			date  time.Time
		)
		if err := rows.Scan(&entry.Description, &entry.Duration, &date); err != nil {
			return nil, tracker.PersistenceErr("scan exercise", err)
		}
		entry.Date = tracker.NewDate(date)
		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, tracker.PersistenceErr("iterate exercises", err)
	}

	return tracker.NewExerciseLog(query.UserID, logs), nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Repo) Close(_ context.Context) error {
	r.db.Close()
	return nil
}

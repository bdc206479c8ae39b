package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/exercisetracker/internal/db"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
	"github.com/2beens/exercisetracker/internal/tracker"
)

const (
	usersCollection     = "users"
	exercisesCollection = "exercises"

	indexUserID     = "userId_1"
	indexName       = "name_1"
	indexUserIDDate = "userId_1_date_1"
)

type userDoc struct {
	UserID    string    `bson:"userId"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"createdAt"`
}

type exerciseDoc struct {
	UserID      string    `bson:"userId"`
	Description string    `bson:"description"`
	Duration    int       `bson:"duration"`
	Date        time.Time `bson:"date"`
}

var _ tracker.Store = (*Repo)(nil)

type Repo struct {
	client    *mongodriver.Client
	users     *mongodriver.Collection
	exercises *mongodriver.Collection
	newID     func() (string, error)
}

func NewRepo(client *mongodriver.Client, dbName string) *Repo {
	database := client.Database(dbName)
	return &Repo{
		client:    client,
		users:     database.Collection(usersCollection),
		exercises: database.Collection(exercisesCollection),
		newID:     tracker.GenerateUserID,
	}
}

// Open connects to mongo and makes sure the indexes exist.
// Every failure is reported as tracker.ErrStoreConnection.
func Open(ctx context.Context, params db.NewMongoClientParams) (*Repo, error) {
	connectCtx := ctx
	if params.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, params.ConnectTimeout)
		defer cancel()
	}

	client, err := db.NewMongoClient(connectCtx, params)
	if err != nil {
		return nil, tracker.StoreConnectionErr("new mongo client", err)
	}

	repo := NewRepo(client, params.DBName)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, tracker.StoreConnectionErr("ensure indexes", err)
	}

	log.Debugf("mongo store open: %s:%s/%s", params.DBHost, params.DBPort, params.DBName)
	return repo, nil
}

// EnsureIndexes creates the unique user indexes the store relies on for correctness.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.users.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetName(indexUserID).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName(indexName).SetUnique(true),
		},
	}); err != nil {
		return err
	}

	_, err := r.exercises.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetName(indexUserIDDate),
	})
	return err
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
	_, err := r.users.InsertOne(ctx, userDoc{
		UserID:    user.UserID,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
	if err == nil {
		return nil
	}

	if mongodriver.IsDuplicateKeyError(err) {
		switch duplicateKeyIndex(err) {
		case indexName:
			return &tracker.DuplicateFieldError{Field: tracker.FieldName, Value: user.Name}
		case indexUserID:
			return &tracker.DuplicateFieldError{Field: tracker.FieldUserID, Value: user.UserID}
		}
	}
	return tracker.PersistenceErr("insert user", err)
}

// duplicateKeyIndex extracts the index name from an E11000 error, e.g.
// "E11000 duplicate key error collection: db.users index: name_1 dup key: { name: "x" }".
func duplicateKeyIndex(err error) string {
	msg := err.Error()
	_, after, found := strings.Cut(msg, "index: ")
	if !found {
		return ""
	}
	index, _, _ := strings.Cut(after, " ")
	return index
}

func (r *Repo) UserIDExists(ctx context.Context, userID string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tracker.userIdExists")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	count, err := r.users.CountDocuments(ctx, bson.D{{Key: "userId", Value: userID}}, options.Count().SetLimit(1))
	if err != nil {
		return false, tracker.PersistenceErr("find user", err)
	}
	return count > 0, nil
}

func (r *Repo) AddExercise(ctx context.Context, exercise tracker.Exercise) (_ *tracker.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tracker.addExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := r.exercises.InsertOne(ctx, exerciseDoc{
		UserID:      exercise.UserID,
		Description: exercise.Description,
		Duration:    exercise.Duration,
		Date:        exercise.Date.Time,
	}); err != nil {
		return nil, tracker.PersistenceErr("insert exercise", err)
	}

	return &exercise, nil
}

func (r *Repo) GetUserExercises(ctx context.Context, query tracker.LogQuery) (_ *tracker.ExerciseLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tracker.getUserExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", query.UserID))

	filter, opts := buildLogFilter(query)
	cursor, err := r.exercises.Find(ctx, filter, opts)
	if err != nil {
		return nil, tracker.PersistenceErr("find exercises", err)
	}

	var docs []exerciseDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, tracker.PersistenceErr("decode exercises", err)
	}

	logs := make([]tracker.LogEntry, 0, len(docs))
	for _, doc := range docs {
		logs = append(logs, tracker.LogEntry{
			Description: doc.Description,
			Duration:    doc.Duration,
			Date:        tracker.NewDate(doc.Date),
		})
	}

	return tracker.NewExerciseLog(query.UserID, logs), nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *Repo) Close(ctx context.Context) error {
	if err := r.client.Disconnect(ctx); err != nil && !errors.Is(err, mongodriver.ErrClientDisconnected) {
		return err
	}
	return nil
}

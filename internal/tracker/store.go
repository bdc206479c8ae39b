package tracker

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -source=$GOFILE -destination=store_mocks_test.go -package=tracker

// Store is the persistence layer. Implementations must enforce uniqueness of
// User.Name and User.UserID natively and report violations as *DuplicateFieldError.
type Store interface {
	AddUser(ctx context.Context, name string) (*User, error)
	UserIDExists(ctx context.Context, userID string) (bool, error)
	AddExercise(ctx context.Context, exercise Exercise) (*Exercise, error)
	GetUserExercises(ctx context.Context, query LogQuery) (*ExerciseLog, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

const maxUserIDAttempts = 3

// CreateUser builds a new user for name and passes it to insert. A collision on the
// generated userId is retried with a fresh id; a duplicate name is returned as is.
func CreateUser(
	ctx context.Context,
	name string,
	newID func() (string, error),
	insert func(ctx context.Context, user User) error,
) (*User, error) {
	var lastErr error
	for attempt := 0; attempt < maxUserIDAttempts; attempt++ {
		id, err := newID()
		if err != nil {
			return nil, err
		}

		user := User{
			UserID:    id,
			Name:      name,
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		err = insert(ctx, user)
		if err == nil {
			return &user, nil
		}

		var dupErr *DuplicateFieldError
		if !errors.As(err, &dupErr) || dupErr.Field != FieldUserID {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

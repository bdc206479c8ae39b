package pkg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolationConstraint(t *testing.T) {
	uniqueErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_users_name"}

	constraint, ok := UniqueViolationConstraint(fmt.Errorf("insert user: %w", uniqueErr))
	assert.True(t, ok)
	assert.Equal(t, "uq_users_name", constraint)
	assert.True(t, IsUniqueViolationError(uniqueErr))

	fkErr := &pgconn.PgError{Code: "23503", ConstraintName: "fk_something"}
	constraint, ok = UniqueViolationConstraint(fkErr)
	assert.False(t, ok)
	assert.Empty(t, constraint)

	assert.False(t, IsUniqueViolationError(errors.New("E11000 duplicate key")))
	assert.False(t, IsUniqueViolationError(nil))
}

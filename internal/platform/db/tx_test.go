package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtvts/mtvts/internal/shared"
)

func TestClassifyRetryableCodes(t *testing.T) {
	for _, code := range []string{"23505", "40001", "40P01", "55P03"} {
		err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: code, ConstraintName: "tickets_control_no_key"})
		classified := Classify(err)
		require.ErrorIs(t, classified, shared.ErrConflict, code)

		var conflict *ConflictError
		require.True(t, errors.As(classified, &conflict))
		assert.Equal(t, code, conflict.Code)
	}
}

func TestClassifyLeavesOtherErrors(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503"}
	assert.Same(t, error(fk), Classify(fk))

	plain := errors.New("boom")
	assert.Equal(t, plain, Classify(plain))
	assert.Nil(t, Classify(nil))
	assert.True(t, NoRows(fmt.Errorf("wrap: %w", pgx.ErrNoRows)))
}

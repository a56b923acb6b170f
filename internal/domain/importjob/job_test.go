package importjob

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	accountID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		req, err := NewRequest("user-1", &accountID, []byte("date,amount\n"), "corr-1")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, req.JobID)
		assert.Equal(t, &accountID, req.AccountID)
		assert.False(t, req.SubmittedAt.IsZero())

		job := NewJob(req)
		assert.Equal(t, req.JobID, job.ID)
		assert.Equal(t, StatusPending, job.Status)
		assert.Equal(t, "corr-1", job.CorrelationID)
		assert.Nil(t, job.Outcome)
	})

	t.Run("EmptyUser", func(t *testing.T) {
		_, err := NewRequest(" ", nil, []byte("x"), "")
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("EmptyCSV", func(t *testing.T) {
		_, err := NewRequest("user-1", nil, nil, "")
		assert.ErrorIs(t, err, ErrEmptyCSV)
	})
}

func TestErrJobNotFound_Is(t *testing.T) {
	id := uuid.New()
	err := error(ErrJobNotFound{JobID: id})

	assert.True(t, errors.Is(err, ErrJobNotFound{}))
	assert.True(t, errors.Is(err, ErrJobNotFound{JobID: id}))
	assert.False(t, errors.Is(err, ErrJobNotFound{JobID: uuid.New()}))
	assert.Contains(t, err.Error(), id.String())
}

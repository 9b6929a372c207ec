package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errDup = errors.New("duplicate key")

func isDup(err error) bool { return errors.Is(err, errDup) }

func TestWithRetries_SucceedsAfterDuplicate(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		if calls < 3 {
			return errDup
		}
		return nil
	}
	err := WithRetries(op, 3, isDup)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetries_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		return errDup
	}
	err := WithRetries(op, 2, isDup)
	assert.ErrorIs(t, err, errDup)
	assert.Equal(t, 3, calls)
}

func TestWithRetries_OtherErrorsReturnImmediately(t *testing.T) {
	errBoom := errors.New("boom")
	calls := 0
	op := func() error {
		calls++
		return errBoom
	}
	err := WithRetries(op, 3, isDup)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	assert.False(t, IsMongoDuplicateKeyError(nil))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("something else")))
}

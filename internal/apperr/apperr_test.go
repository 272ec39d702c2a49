package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchWithErrorsIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("send: %w", Persistence("store.SendMessage", cause))

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPermission)
	assert.Equal(t, ErrPersistence, KindOf(err))
}

func TestMessageStripsOp(t *testing.T) {
	err := Permission("store.UpdateMessage", "edit window has closed")
	assert.Equal(t, "store.UpdateMessage: edit window has closed", err.Error())
	assert.Equal(t, "edit window has closed", Message(err))
	assert.Equal(t, "not found", Message(NotFound("x", "")))
	assert.Nil(t, KindOf(errors.New("plain")))
}

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCodeAndMessage(t *testing.T) {
	wrapped := fmt.Errorf("add friend: %w", ErrSelfFriend)

	assert.True(t, errors.Is(wrapped, ErrSelfFriend))
	assert.True(t, errors.Is(wrapped, SelfReference("cannot add yourself as a friend")))
	assert.False(t, errors.Is(wrapped, ErrAlreadyFriends))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("x: %w", ErrUserNotFound)))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeInternal, CodeOf(Wrap(CodeInternal, "save failed", errors.New("disk"))))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "user not found", MessageOf(ErrUserNotFound))
	assert.Equal(t, "internal error", MessageOf(errors.New("boom")))
	assert.Equal(t, "save failed: disk", Wrap(CodeInternal, "save failed", errors.New("disk")).Error())
}

package prompt

import (
	"fmt"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidatePassword("secret"))
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(promptui.ErrInterrupt))
	assert.True(t, IsAborted(fmt.Errorf("read: %w", ErrAborted)))
	assert.False(t, IsAborted(ErrPasswordMismatch))
	assert.Equal(t, ErrAborted, wrapError(promptui.ErrInterrupt))
	assert.Nil(t, wrapError(nil))
}

func TestConfirmWithForce(t *testing.T) {
	ok, err := ConfirmWithForce("Remove user alice?", true)
	assert.NoError(t, err)
	assert.True(t, ok)
}

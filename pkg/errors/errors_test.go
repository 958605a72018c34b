package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentityForIs(t *testing.T) {
	err := Clone(ErrInvalidTransition, "delivered requires finalized")
	require.True(t, stderrors.Is(err, ErrInvalidTransition))
	require.False(t, stderrors.Is(err, ErrForbidden))
	require.Equal(t, "delivered requires finalized", err.Error())
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	require.Equal(t, ErrInternal.Code, appErr.Code)
	require.Equal(t, 500, appErr.Status)

	wrapped := fmt.Errorf("context: %w", ErrNotFound)
	require.Equal(t, ErrNotFound.Code, FromError(wrapped).Code)
}

func TestIsSessionExpired(t *testing.T) {
	err := Wrap(fmt.Errorf("419"), ErrSessionExpired.Code, ErrSessionExpired.Status, "session expired")
	require.True(t, IsSessionExpired(err))
	require.False(t, IsSessionExpired(ErrNetworkFailure))
}

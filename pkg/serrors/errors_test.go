package serrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode_ExtractsThroughWrapping(t *testing.T) {
	base := NewValidationError("bad field %q", "name")
	wrapped := fmt.Errorf("handling request: %w", base)

	require.Equal(t, CodeValidation, Code(wrapped))
	require.True(t, HasCode(wrapped, CodeValidation))
	require.False(t, HasCode(wrapped, CodeNotFound))
}

func TestCode_PlainErrorsHaveNoCode(t *testing.T) {
	require.Equal(t, "", Code(errors.New("plain")))
}

func TestIs_MatchesIdenticalSentinels(t *testing.T) {
	sentinel := NewError(CodeNotFound, "record not found")
	joined := errors.Join(sentinel, errors.New("underlying"))
	require.ErrorIs(t, joined, sentinel)
}

func TestIs_DistinguishesSentinelsSharingACode(t *testing.T) {
	unreachable := NewError(CodeSourceUnavailable, "legacy source unreachable")
	missing := NewError(CodeSourceUnavailable, "legacy table does not exist")

	joined := errors.Join(unreachable, errors.New("connection refused"))
	require.ErrorIs(t, joined, unreachable)
	require.NotErrorIs(t, joined, missing)
}

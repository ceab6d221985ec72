package common_test

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/common"
)

func TestSoftError_Error(t *testing.T) {

	var anError = errors.New("an error")

	aWrappedSoftErr := fmt.Errorf("wrap me up: %w", common.SoftError{Err: anError})

	var isSoftErr common.SoftError
	require.True(t, errors.As(aWrappedSoftErr, &isSoftErr))
	require.True(t, errors.Is(aWrappedSoftErr, anError))
	require.Equal(t, "an error", isSoftErr.Error())
}

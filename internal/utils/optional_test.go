package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-brief-portal/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestDeref(t *testing.T) {
	require.Equal(t, "", utils.Deref[string](nil))
	require.Equal(t, "Acme", utils.Deref(utils.Ptr("Acme")))
	require.Equal(t, "-", utils.DerefOr(nil, "-"))
	require.Equal(t, 3, utils.DerefOr(utils.Ptr(3), 7))
}

func TestOptionalString(t *testing.T) {
	require.Nil(t, utils.OptionalString(""))
	require.Nil(t, utils.OptionalString("  \t"))
	require.Equal(t, "Stay a while", *utils.OptionalString(" Stay a while "))
}

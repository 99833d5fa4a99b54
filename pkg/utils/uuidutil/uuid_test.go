package uuidutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameUUID(t *testing.T) {
	a := NameUUID("modbus://192.168.1.10:502/1")
	require.Len(t, a, 32)
	require.Equal(t, a, NameUUID("modbus://192.168.1.10:502/1"))
	require.NotEqual(t, a, NameUUID("modbus://192.168.1.10:502/2"))
}

func TestShortUUID(t *testing.T) {
	require.NotEqual(t, ShortUUID(), ShortUUID())
	require.NotContains(t, ShortUUID(), "-")
}

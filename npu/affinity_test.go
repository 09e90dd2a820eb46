//go:build linux

package npu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUMask(t *testing.T) {

	mask, err := CPUMask("RK3588 ", FastCores)
	require.NoError(t, err)
	assert.Equal(t, CPUCoreMask([]int{4, 5, 6, 7}), mask)

	mask, err = CPUMask("rk3582", AllCores)
	require.NoError(t, err)
	assert.Equal(t, CPUCoreMask([]int{0, 1, 2, 3, 4, 5}), mask)

	_, err = CPUMask("rk9999", FastCores)
	assert.Error(t, err)

	_, err = CPUMask("rk3588", CoreType(7))
	assert.Error(t, err)
}

func TestParseCoreType(t *testing.T) {

	for in, want := range map[string]CoreType{"fast": FastCores, "Slow": SlowCores, "": AllCores} {
		ct, err := ParseCoreType(in)
		require.NoError(t, err)
		assert.Equal(t, want, ct)
	}

	_, err := ParseCoreType("turbo")
	assert.Error(t, err)
}

package builtin

import (
	"testing"

	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/stretchr/testify/require"
)

func TestPrograms(t *testing.T) {
	t.Parallel()

	r := Programs()
	for _, img := range Images() {
		got, ok := r.ByName(img.Name)
		require.True(t, ok, img.Name)
		require.Equal(t, img.DataHash(), got.DataHash())

		byHash, ok := r.Lookup(img.DataHash())
		require.True(t, ok, img.Name)
		require.Equal(t, img.Name, byHash.Name)
	}
	require.Len(t, r.Names(), len(Images()))

	// Registering a second copy of an image fails.
	require.Error(t, r.Register(vm.NewImage(CombineLock, nil)))
}

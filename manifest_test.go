package smoltable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"smoltable/lsm/pebblekeyspace"
)

func TestManifestTablePersistAndDelete(t *testing.T) {
	ks, err := pebblekeyspace.Open(pebblekeyspace.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ks.Close()) })

	m, err := OpenManifestTable(ks)
	require.NoError(t, err)

	require.NoError(t, m.PersistUserTable("orders"))
	require.NoError(t, m.PersistUserTable("customers"))

	names, err := m.ListUserTableNames()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"orders", "customers"}, names)

	require.NoError(t, m.DeleteUserTable("orders"))
	names, err = m.ListUserTableNames()
	require.NoError(t, err)
	require.Equal(t, []string{"customers"}, names)
}

package smoltable

import (
	"fmt"

	"smoltable/lsm"
)

// manifestTablePartitionName is the keyspace-wide manifest's partition
// name, reserved (via the leading underscore) the same way every other
// internal partition is.
const manifestTablePartitionName = "_manifest"

// ManifestTable records which user tables exist, independent of any one
// Table's own per-table manifest partition (which tracks that table's
// column families and locality groups instead). Grounded on
// original_source/server/src/manifest.rs's ManifestTable.
type ManifestTable struct {
	keyspace  lsm.Keyspace
	partition lsm.PartitionHandle
}

// OpenManifestTable opens or creates the keyspace-wide manifest.
func OpenManifestTable(keyspace lsm.Keyspace) (*ManifestTable, error) {
	partition, err := keyspace.OpenPartition(manifestTablePartitionName, manifestPartitionOptions())
	if err != nil {
		return nil, wrapStorage(err)
	}
	return &ManifestTable{keyspace: keyspace, partition: partition}, nil
}

func userTableManifestKey(tableName string) []byte {
	return []byte(fmt.Sprintf("table#%s#name", tableName))
}

func userTableManifestPrefix(tableName string) []byte {
	return []byte(fmt.Sprintf("table#%s#", tableName))
}

// ListUserTableNames returns every table name ever persisted via
// PersistUserTable and not since removed by DeleteUserTable.
func (m *ManifestTable) ListUserTableNames() ([]string, error) {
	snap := m.partition.SnapshotAt(m.keyspace.Instant())
	defer snap.Close()

	iter := snap.Range(nil)
	defer iter.Close()

	var names []string
	for {
		_, value, ok, err := iter.Next()
		if err != nil {
			return nil, wrapStorage(err)
		}
		if !ok {
			break
		}
		names = append(names, string(value))
	}
	return names, nil
}

// PersistUserTable records tableName as an existing user table, fsyncing
// before returning so a crash right after table creation never loses the
// registration.
func (m *ManifestTable) PersistUserTable(tableName string) error {
	if err := m.partition.Insert(userTableManifestKey(tableName), []byte(tableName)); err != nil {
		return wrapStorage(err)
	}
	return wrapStorage(m.keyspace.Persist(lsm.PersistSyncAll))
}

// DeleteUserTable removes tableName's manifest entry. It does not delete
// the table's own partitions; callers (TableHost.DropTable) do that
// separately, the same division of responsibility as the original's
// delete_table handler.
func (m *ManifestTable) DeleteUserTable(tableName string) error {
	snap := m.partition.SnapshotAt(m.keyspace.Instant())
	defer snap.Close()

	prefix := userTableManifestPrefix(tableName)
	iter := snap.Prefix(prefix)
	defer iter.Close()

	var keys [][]byte
	for {
		key, _, ok, err := iter.Next()
		if err != nil {
			return wrapStorage(err)
		}
		if !ok {
			break
		}
		keys = append(keys, append([]byte(nil), key...))
	}

	for _, key := range keys {
		if err := m.partition.Remove(key); err != nil {
			return wrapStorage(err)
		}
	}
	return nil
}

package smoltable

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"smoltable/lsm"
)

// GarbageCollectionOptions configures per-column-family retention: a cap
// on the number of versions kept per column, a maximum cell age, or both.
// Nil means "no limit" for that dimension.
type GarbageCollectionOptions struct {
	VersionLimit *uint64 `json:"version_limit,omitempty"`
	TTLSeconds   *uint64 `json:"ttl_secs,omitempty"`
}

// hasLimit reports whether this GC configuration does anything at all.
func (g GarbageCollectionOptions) hasLimit() bool {
	return g.VersionLimit != nil || g.TTLSeconds != nil
}

// ColumnFamilyDefinition is a registered column family: its name and its
// garbage-collection policy.
type ColumnFamilyDefinition struct {
	Name string                    `json:"name"`
	GC   GarbageCollectionOptions `json:"gc_settings"`
}

// LocalityGroup is a set of column families co-located in one physical
// partition, separate from the table's default partition. Grouping
// families that are usually read together keeps a scan from paying for
// families it doesn't need.
type LocalityGroup struct {
	ID             string
	ColumnFamilies []string
	Partition      lsm.PartitionHandle
}

// ContainsColumnFamily reports whether name is one of this group's families.
func (lg *LocalityGroup) ContainsColumnFamily(name string) bool {
	for _, cf := range lg.ColumnFamilies {
		if cf == name {
			return true
		}
	}
	return false
}

// ContainsAnyColumnFamily reports whether any of names is one of this
// group's families.
func (lg *LocalityGroup) ContainsAnyColumnFamily(names []string) bool {
	for _, name := range names {
		if lg.ContainsColumnFamily(name) {
			return true
		}
	}
	return false
}

// manifest key layout for the per-table manifest partition: column family
// definitions are stored under "cf#<name>", locality group membership
// under "lg#<id>". Both are JSON-encoded, matching the original's
// serde_json choice for these manifest entries (as opposed to cell
// values, which use the compact binary codec in cell.go).

func columnFamilyManifestKey(name string) []byte {
	return []byte("cf#" + name)
}

func localityGroupManifestKey(id string) []byte {
	return []byte("lg#" + id)
}

func newLocalityGroupID() string {
	return uuid.NewString()
}

func encodeColumnFamilyDefinition(def ColumnFamilyDefinition) ([]byte, error) {
	b, err := json.Marshal(def)
	if err != nil {
		return nil, codecErrorf("encode column family definition: %v", err)
	}
	return b, nil
}

func decodeColumnFamilyDefinition(raw []byte) (ColumnFamilyDefinition, error) {
	var def ColumnFamilyDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return ColumnFamilyDefinition{}, codecErrorf("decode column family definition: %v", err)
	}
	return def, nil
}

func encodeLocalityGroupFamilies(families []string) ([]byte, error) {
	b, err := json.Marshal(families)
	if err != nil {
		return nil, codecErrorf("encode locality group families: %v", err)
	}
	return b, nil
}

func decodeLocalityGroupFamilies(raw []byte) ([]string, error) {
	var families []string
	if err := json.Unmarshal(raw, &families); err != nil {
		return nil, codecErrorf("decode locality group families: %v", err)
	}
	return families, nil
}

// localityGroupIDFromManifestKey extracts the id from a "lg#<id>" manifest
// key, mirroring the original's key.split('#').nth(1).
func localityGroupIDFromManifestKey(key string) (string, bool) {
	_, id, ok := strings.Cut(key, "#")
	return id, ok
}

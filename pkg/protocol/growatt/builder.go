package growatt

import (
	"math"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
)

type RegisterSlice []RegisterSpec

func (rs RegisterSlice) Len() int {
	return len(rs)
}

func (rs RegisterSlice) Less(i, j int) bool {
	return rs[i].Address < rs[j].Address
}

func (rs RegisterSlice) Swap(i, j int) {
	rs[i], rs[j] = rs[j], rs[i]
}

// BuildEntities turns the catalog into entities. Registers are walked in
// address order; a high half claims the register at the next address as its
// low half. A high half without a partner is skipped.
func BuildEntities(instanceID string, c *Catalog, reader RegisterReader) []Entity {
	registers := make(RegisterSlice, len(c.Registers))
	copy(registers, c.Registers)
	sort.Stable(registers)

	byAddress := make(map[uint16]RegisterSpec, len(registers))
	for i := len(registers) - 1; i >= 0; i-- {
		// first one in address order wins
		byAddress[registers[i].Address] = registers[i]
	}

	entities := make([]Entity, 0, len(registers))
	claimed := sets.New[uint16]()
	for _, r := range registers {
		if claimed.Has(r.Address) {
			continue
		}

		if c.Role(r) == WordHigh {
			low, ok := byAddress[r.Address+1]
			if !ok || r.Address == math.MaxUint16 {
				klog.Warningf("Register catalog mismatch: high register %q at %d has no low register at %d, skipped", r.Name, r.Address, uint32(r.Address)+1)
				continue
			}
			entities = append(entities, NewSensor32(instanceID, c, r, low, reader))
			claimed.Insert(r.Address, r.Address+1)
			continue
		}

		entities = append(entities, NewSensor16(instanceID, c, r, reader))
		claimed.Insert(r.Address)
	}

	klog.V(3).InfoS("Built entities", "instance", instanceID, "registers", len(registers), "entities", len(entities))
	return entities
}

// Package partitions splits the nodes or elements of a mesh into disjoint
// groups that are processed together by one worker of a parallel pass.
package partitions

import (
	"fmt"
)

// Partition represents a collection of entities processed together as one
// unit of work
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Entity membership, ascending
	Entities    []int // Global entity indices in this partition
	NumEntities int   // len(Entities)
}

// PartitionLayout manages the complete decomposition of an entity range
type PartitionLayout struct {
	// All partitions
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumEntities) across all partitions
	TotalEntities int // Sum of all entities across partitions
	NumPartitions int // Total number of partitions

	// Entity to partition mapping
	EToP []int // Length TotalEntities: entity k belongs to partition EToP[k]
}

// GetPartition returns the partition containing entity k
func (pl *PartitionLayout) GetPartition(entity int) int {
	if entity < 0 || entity >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[entity]
}

// ValidateLayout checks partition consistency: every entity belongs to
// exactly one partition and the sizing information matches the members
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%d partitions stored, NumPartitions %d", len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.EToP) != pl.TotalEntities {
		return fmt.Errorf("EToP length %d != TotalEntities %d", len(pl.EToP), pl.TotalEntities)
	}

	seen := make([]bool, pl.TotalEntities)
	actualMax, total := 0, 0
	for i, p := range pl.Partitions {
		if p.ID != i {
			return fmt.Errorf("partition %d stored at position %d", p.ID, i)
		}
		if p.NumEntities != len(p.Entities) {
			return fmt.Errorf("partition %d: NumEntities %d != %d members", p.ID, p.NumEntities, len(p.Entities))
		}
		for _, k := range p.Entities {
			if k < 0 || k >= pl.TotalEntities {
				return fmt.Errorf("partition %d: entity %d out of range", p.ID, k)
			}
			if seen[k] {
				return fmt.Errorf("partition %d: entity %d assigned twice", p.ID, k)
			}
			if pl.EToP[k] != p.ID {
				return fmt.Errorf("entity %d: EToP %d but member of partition %d", k, pl.EToP[k], p.ID)
			}
			seen[k] = true
		}
		total += p.NumEntities
		if p.NumEntities > actualMax {
			actualMax = p.NumEntities
		}
	}
	if total != pl.TotalEntities {
		return fmt.Errorf("partitions hold %d entities, expected %d", total, pl.TotalEntities)
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	return nil
}

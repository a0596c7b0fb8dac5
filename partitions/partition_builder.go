package partitions

import (
	"fmt"
	"math"
)

// PartitionStrategy defines how entities are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive entities
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// PartitionBuilder constructs partitions over the range [0, NumEntities)
type PartitionBuilder struct {
	NumEntities int

	// Partitioning parameters; NumPartitions wins when both are set
	NumPartitions       int // Desired number of partitions
	TargetPartitionSize int // Desired entities per partition
	Strategy            PartitionStrategy
}

// BuildPartitions creates a validated partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumEntities < 0 {
		return nil, fmt.Errorf("negative entity count %d", pb.NumEntities)
	}

	// Determine number of partitions needed
	numPartitions := pb.calculateNumPartitions()

	// Partition the entities
	eToP, err := pb.partitionEntities(numPartitions)
	if err != nil {
		return nil, err
	}

	// Create partition structures
	partitions := pb.createPartitions(eToP, numPartitions)

	// Create the layout
	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      calculateKpartMax(partitions),
		TotalEntities: pb.NumEntities,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}

	// Validate the layout
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count, never more
// partitions than entities
func (pb *PartitionBuilder) calculateNumPartitions() int {
	if pb.NumEntities == 0 {
		return 0
	}

	numPartitions := pb.NumPartitions
	if numPartitions <= 0 && pb.TargetPartitionSize > 0 {
		numPartitions = int(math.Ceil(float64(pb.NumEntities) / float64(pb.TargetPartitionSize)))
	}

	// Ensure at least one partition
	if numPartitions < 1 {
		numPartitions = 1
	}
	if numPartitions > pb.NumEntities {
		numPartitions = pb.NumEntities
	}

	return numPartitions
}

// partitionEntities assigns entities to partitions
func (pb *PartitionBuilder) partitionEntities(numPartitions int) ([]int, error) {
	eToP := make([]int, pb.NumEntities)

	switch pb.Strategy {
	case BlockPartition:
		// Sizes differ by at most one, larger blocks first
		base, extra := 0, 0
		if numPartitions > 0 {
			base, extra = pb.NumEntities/numPartitions, pb.NumEntities%numPartitions
		}
		k := 0
		for p := 0; p < numPartitions; p++ {
			size := base
			if p < extra {
				size++
			}
			for i := 0; i < size; i++ {
				eToP[k] = p
				k++
			}
		}

	case RoundRobin:
		// Distribute entities cyclically
		for i := 0; i < pb.NumEntities; i++ {
			eToP[i] = i % numPartitions
		}

	default:
		return nil, fmt.Errorf("unknown partition strategy %v", pb.Strategy)
	}

	return eToP, nil
}

// createPartitions builds partition structures from entity assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)

	// Initialize partitions
	for i := range partitions {
		partitions[i] = Partition{
			ID:       i,
			Entities: make([]int, 0, pb.NumEntities/numPartitions+1),
		}
	}

	// Assign entities to partitions
	for entity, part := range eToP {
		partitions[part].Entities = append(partitions[part].Entities, entity)
		partitions[part].NumEntities++
	}

	return partitions
}

// calculateKpartMax finds the largest partition
func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumEntities > kpartMax {
			kpartMax = p.NumEntities
		}
	}
	return kpartMax
}

package lineage_test

import (
	"fmt"
	"log"

	"github.com/hupe1980/lineage"
)

// Example demonstrates how resampling collapses lineages.
func Example() {
	c, err := lineage.New(1)
	if err != nil {
		log.Fatal(err)
	}

	// t=0: three independent roots.
	c.WriteState(0, []float64{10, 11, 12}, nil, false)
	// t=1: every particle keeps its own parent.
	c.WriteState(1, []float64{20, 21, 22}, []int{0, 1, 2}, false)
	// t=2: resampling keeps only the descendants of particle 0.
	c.WriteState(2, []float64{30, 31, 32}, []int{0, 0, 0}, true)

	for p := 0; p < 3; p++ {
		fmt.Println(c.Trajectory(p))
	}
	fmt.Println(c.NumNodes(), "of", c.NumSlots(), "slots in use")
	// Output:
	// [10 20 30]
	// [10 20 31]
	// [10 20 32]
	// 5 of 6 slots in use
}

// ExampleCache_Clone branches a filter run.
func ExampleCache_Clone() {
	c, _ := lineage.New(1)
	c.WriteState(0, []float64{1, 2}, nil, false)

	branch := c.Clone()
	branch.WriteState(1, []float64{3, 4}, []int{1, 1}, true)

	fmt.Println(c.Size(), branch.Size())
	fmt.Println(branch.Trajectory(0))
	// Output:
	// 1 2
	// [2 3]
}

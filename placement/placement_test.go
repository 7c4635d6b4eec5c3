package placement_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/placement"
)

// k=4, l_f=2, l_c=1, δ=2, r_f=2, r_c=4, three 2-node racks (spec.md §8).
func threeRackTopology() *cluster.Topology {
	topo := cluster.NewTopology()
	topo.AddRack("R0", "10.0.0.1", "10.0.0.2")
	topo.AddRack("R1", "10.0.1.1", "10.0.1.2")
	topo.AddRack("R2", "10.0.2.1", "10.0.2.2")
	return topo
}

func baseSchema(method cluster.PlaceMethod) cluster.Schema {
	return cluster.Schema{K: 4, LF: 2, LC: 1, G: 0, ChunkSize: 1024, PacketSize: 512, Place: method}
}

var _ = Describe("Placement Planner", func() {
	Context("OPT_S (cluster-aware)", func() {
		It("packs the core rack with r_f+δ blocks and spills the rest to one auxiliary rack", func() {
			schema := baseSchema(cluster.OptS)
			topo := threeRackTopology()

			plan, err := placement.Plan(schema, topo)
			Expect(err).NotTo(HaveOccurred())

			core := map[int]string{0: plan[0], 1: plan[1], 4: plan[4], 5: plan[5]}
			for idx, node := range core {
				Expect(topo.RackOf(node)).To(Equal("R0"), "block %d should live on the core rack", idx)
			}
			Expect(topo.RackOf(plan[2])).To(Equal("R1"))
			Expect(topo.RackOf(plan[3])).To(Equal("R1"))
		})

		It("fails with ErrInsufficientTopology when there aren't enough racks", func() {
			schema := baseSchema(cluster.OptS)
			topo := cluster.NewTopology()
			topo.AddRack("R0", "10.0.0.1")
			_, err := placement.Plan(schema, topo)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("OPT_R (rack-distributed)", func() {
		It("never splits a fast local group across racks", func() {
			schema := baseSchema(cluster.OptR)
			topo := threeRackTopology()
			plan, err := placement.Plan(schema, topo)
			Expect(err).NotTo(HaveOccurred())

			// group 0: data {0,1}, parity {k+0=4}; group 1: data {2,3}, parity {5}.
			Expect(topo.RackOf(plan[0])).To(Equal(topo.RackOf(plan[1])))
			Expect(topo.RackOf(plan[0])).To(Equal(topo.RackOf(plan[4])))
			Expect(topo.RackOf(plan[2])).To(Equal(topo.RackOf(plan[3])))
			Expect(topo.RackOf(plan[2])).To(Equal(topo.RackOf(plan[5])))
		})
	})

	Context("FLAT", func() {
		It("uses k+l_f distinct racks, one block per rack, always the first node", func() {
			schema := baseSchema(cluster.Flat)
			topo := threeRackTopology()
			schema.K, schema.LF = 2, 1 // shrink so 3 racks suffice: k+l_f == 3
			plan, err := placement.Plan(schema, topo)
			Expect(err).NotTo(HaveOccurred())

			seen := map[string]bool{}
			for i := 0; i < schema.K+schema.LF; i++ {
				rack := topo.RackOf(plan[i])
				Expect(seen[rack]).To(BeFalse(), "rack %s reused across FLAT blocks", rack)
				Expect(plan[i]).To(Equal(topo.Racks[rack].Nodes[0]), "block %d not on its rack's first node", i)
				seen[rack] = true
			}
			Expect(seen).To(HaveLen(schema.K + schema.LF))
		})
	})
})

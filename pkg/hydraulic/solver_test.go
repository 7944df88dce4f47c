package hydraulic

import (
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

func buildNet(t *testing.T, doc string) (*network.Net, *network.State) {
	t.Helper()
	m, err := model.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	net, err := network.Compile(m)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	st := network.NewState(net)
	for i := range net.Nodes {
		d, err := net.Demand(i, 0)
		if err != nil {
			t.Fatalf("Demand failed: %v", err)
		}
		st.Demand[i] = d
	}
	return net, st
}

func solve(t *testing.T, net *network.Net, st *network.State) Result {
	t.Helper()
	s := New(net)
	s.InitFlows(st)
	res, err := s.Solve(st)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !res.Converged {
		t.Fatalf("Solve did not converge: %+v", res)
	}
	return res
}

func TestSolve_SinglePipe(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 50}
junctions:
  - {id: J1, elevation: 0, base_demand: 0.05}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 500, diameter: 0.3, roughness: 120}
`)
	solve(t, net, st)

	j := net.NodeIndex["J1"]
	q := st.Flow[0]
	if math.Abs(q-0.05) > 1e-4 {
		t.Errorf("Expected flow 0.05, got %v", q)
	}

	// The junction head must sit exactly on the Hazen-Williams loss curve
	// for the solved flow.
	r := 10.667 * 500 / (math.Pow(120, 1.852) * math.Pow(0.3, 4.871))
	hloss := r * math.Pow(q, 1.852)
	if math.Abs((50-st.Head[j])-hloss) > 1e-6 {
		t.Errorf("Head inconsistent with headloss: head=%v loss=%v", st.Head[j], hloss)
	}
	if st.Head[j] >= 50 {
		t.Errorf("Junction head should be below the reservoir, got %v", st.Head[j])
	}
}

func TestSolve_ZeroDemandEqualHeads(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 50}
  - {id: R2, head: 50}
junctions:
  - {id: J1, elevation: 0}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 300, diameter: 0.3, roughness: 120}
  - {id: P2, node1: J1, node2: R2, length: 300, diameter: 0.3, roughness: 120}
`)
	solve(t, net, st)

	for li := range net.Links {
		if math.Abs(st.Flow[li]) > 1e-4 {
			t.Errorf("Link %d should carry no flow, got %v", li, st.Flow[li])
		}
	}
	j := net.NodeIndex["J1"]
	if math.Abs(st.Head[j]-50) > 1e-4 {
		t.Errorf("Junction head should settle at 50, got %v", st.Head[j])
	}
}

func TestSolve_ParallelPipesSplitEvenly(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 50}
junctions:
  - {id: J1, elevation: 0, base_demand: 0.06}
pipes:
  - {id: PA, node1: R1, node2: J1, length: 400, diameter: 0.25, roughness: 120}
  - {id: PB, node1: R1, node2: J1, length: 400, diameter: 0.25, roughness: 120}
`)
	solve(t, net, st)

	qa := st.Flow[net.LinkIndex["PA"]]
	qb := st.Flow[net.LinkIndex["PB"]]
	if math.Abs(qa-qb) > 1e-6 {
		t.Errorf("Identical parallel pipes should split evenly: %v vs %v", qa, qb)
	}
	if math.Abs(qa+qb-0.06) > 1e-4 {
		t.Errorf("Split flows should sum to the demand, got %v", qa+qb)
	}
}

func TestSolve_PumpLiftsToTargetCurve(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 10}
junctions:
  - {id: J1, elevation: 0, base_demand: 0.04}
pumps:
  - {id: PU1, node1: R1, node2: J1, curve: c1}
curves:
  - {id: c1, points: [{x: 0.05, y: 30}]}
`)
	solve(t, net, st)

	li := net.LinkIndex["PU1"]
	j := net.NodeIndex["J1"]
	q := st.Flow[li]
	if math.Abs(q-0.04) > 1e-4 {
		t.Errorf("Expected pump flow 0.04, got %v", q)
	}
	// The pump head gain must sit on the fitted characteristic.
	pu := net.Links[li].Pump
	gain := st.Head[j] - 10
	want := pu.H0 - pu.R*math.Pow(q, pu.N)
	if math.Abs(gain-want) > 1e-6 {
		t.Errorf("Pump gain off its curve: got %v, want %v", gain, want)
	}
}

func TestSolve_PRVActiveHoldsSetting(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 60}
junctions:
  - {id: JA, elevation: 0}
  - {id: JB, elevation: 0}
  - {id: JC, elevation: 0, base_demand: 0.02}
pipes:
  - {id: P1, node1: R1, node2: JA, length: 200, diameter: 0.3, roughness: 130}
  - {id: P2, node1: JB, node2: JC, length: 200, diameter: 0.3, roughness: 130}
valves:
  - {id: V1, node1: JA, node2: JB, diameter: 0.2, type: prv, setting: 20}
`)
	solve(t, net, st)

	li := net.LinkIndex["V1"]
	jb := net.NodeIndex["JB"]
	if st.Status[li] != network.Active {
		t.Fatalf("PRV should be active, got %v", st.Status[li])
	}
	if math.Abs(st.Pressure(net, jb)-20) > 1e-3 {
		t.Errorf("PRV should hold downstream pressure 20, got %v", st.Pressure(net, jb))
	}
	if math.Abs(st.Flow[li]-0.02) > 1e-4 {
		t.Errorf("PRV should pass the demand, got %v", st.Flow[li])
	}
}

func TestSolve_PRVOpensWhenUpstreamTooLow(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 30}
junctions:
  - {id: JA, elevation: 0}
  - {id: JB, elevation: 0}
  - {id: JC, elevation: 0, base_demand: 0.02}
pipes:
  - {id: P1, node1: R1, node2: JA, length: 200, diameter: 0.3, roughness: 130}
  - {id: P2, node1: JB, node2: JC, length: 200, diameter: 0.3, roughness: 130}
valves:
  - {id: V1, node1: JA, node2: JB, diameter: 0.2, type: prv, setting: 50}
`)
	solve(t, net, st)

	li := net.LinkIndex["V1"]
	jb := net.NodeIndex["JB"]
	if st.Status[li] != network.Open {
		t.Fatalf("PRV with setting above upstream head should open fully, got %v", st.Status[li])
	}
	if p := st.Pressure(net, jb); p >= 30 || p <= 0 {
		t.Errorf("Open-valve downstream pressure should be between 0 and 30, got %v", p)
	}
}

func TestSolve_FCVLimitsFlow(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 60}
  - {id: R2, head: 10}
junctions:
  - {id: JA, elevation: 0}
  - {id: JB, elevation: 0}
pipes:
  - {id: P1, node1: R1, node2: JA, length: 100, diameter: 0.3, roughness: 130}
  - {id: P2, node1: JB, node2: R2, length: 100, diameter: 0.3, roughness: 130}
valves:
  - {id: V1, node1: JA, node2: JB, diameter: 0.2, type: fcv, setting: 0.01}
`)
	solve(t, net, st)

	li := net.LinkIndex["V1"]
	if st.Status[li] != network.Active {
		t.Fatalf("FCV should be active, got %v", st.Status[li])
	}
	if math.Abs(st.Flow[li]-0.01) > 1e-4 {
		t.Errorf("FCV should cap the flow at 0.01, got %v", st.Flow[li])
	}
}

func TestSolve_CheckValveBlocksReverseFlow(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: LO, head: 10}
  - {id: HI, head: 50}
pipes:
  - {id: P1, node1: LO, node2: HI, length: 200, diameter: 0.3, roughness: 120, status: cv}
`)
	solve(t, net, st)

	if st.Status[0] != network.Closed {
		t.Fatalf("Check valve against the gradient should close, got %v", st.Status[0])
	}
	if math.Abs(st.Flow[0]) > 1e-4 {
		t.Errorf("Closed check valve should carry no flow, got %v", st.Flow[0])
	}
}

func TestSolve_EmitterDischarge(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 50}
junctions:
  - {id: J1, elevation: 0, emitter: 0.002}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 200, diameter: 0.3, roughness: 120}
`)
	solve(t, net, st)

	j := net.NodeIndex["J1"]
	want := 0.002 * math.Sqrt(st.Pressure(net, j))
	if math.Abs(st.Emitter[j]-want) > 1e-5 {
		t.Errorf("Emitter flow should follow Ke·p^0.5: got %v, want %v", st.Emitter[j], want)
	}
	if math.Abs(st.Flow[0]-st.Emitter[j]) > 1e-4 {
		t.Errorf("Pipe should feed exactly the emitter outflow: %v vs %v", st.Flow[0], st.Emitter[j])
	}
}

func TestSolve_UnbalancedStopPolicy(t *testing.T) {
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 50}
junctions:
  - {id: J1, elevation: 0, base_demand: 0.05}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 500, diameter: 0.3, roughness: 120}
options:
  trials: 1
  accuracy: 1e-12
  unbalanced: stop
`)
	s := New(net)
	s.InitFlows(st)
	_, err := s.Solve(st)
	if !errors.Is(err, ErrUnbalanced) {
		t.Errorf("Expected ErrUnbalanced under the stop policy, got %v", err)
	}
}

func TestSolve_MassConservationProperty(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("junction continuity holds for any demands", prop.ForAll(
		func(d1, d2, d3 float64) bool {
			net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 80}
  - {id: R2, head: 70}
junctions:
  - {id: J1, elevation: 0}
  - {id: J2, elevation: 5}
  - {id: J3, elevation: 10}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 300, diameter: 0.3, roughness: 120}
  - {id: P2, node1: J1, node2: J2, length: 300, diameter: 0.25, roughness: 120}
  - {id: P3, node1: J2, node2: J3, length: 300, diameter: 0.25, roughness: 120}
  - {id: P4, node1: R2, node2: J3, length: 300, diameter: 0.3, roughness: 120}
  - {id: P5, node1: J1, node2: J3, length: 500, diameter: 0.2, roughness: 120}
`)
			st.Demand[net.NodeIndex["J1"]] = d1
			st.Demand[net.NodeIndex["J2"]] = d2
			st.Demand[net.NodeIndex["J3"]] = d3

			s := New(net)
			s.InitFlows(st)
			if _, err := s.Solve(st); err != nil {
				return false
			}

			// Net inflow minus demand must vanish at every junction.
			for i := 0; i < net.Junctions; i++ {
				var in float64
				for _, li := range net.Incident[i] {
					l := &net.Links[li]
					if l.N2 == i {
						in += st.Flow[li]
					} else {
						in -= st.Flow[li]
					}
				}
				if math.Abs(in-st.Demand[i]) > 5e-3 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 0.05),
		gen.Float64Range(0, 0.05),
		gen.Float64Range(0, 0.05),
	))

	properties.TestingRun(t)
}

func TestSolve_LoopHeadlossConsistency(t *testing.T) {
	// Around any loop the heads must be single-valued: both paths from R1
	// to J2 see the same terminal head, so each link's loss matches the
	// head difference of its endpoints.
	net, st := buildNet(t, `
reservoirs:
  - {id: R1, head: 60}
junctions:
  - {id: J1, elevation: 0, base_demand: 0.02}
  - {id: J2, elevation: 0, base_demand: 0.03}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 300, diameter: 0.3, roughness: 120}
  - {id: P2, node1: R1, node2: J2, length: 300, diameter: 0.3, roughness: 120}
  - {id: P3, node1: J1, node2: J2, length: 300, diameter: 0.25, roughness: 120}
`)
	solve(t, net, st)

	for li := range net.Links {
		l := &net.Links[li]
		q := st.Flow[li]
		r := 10.667 * l.Length / (math.Pow(l.Roughness, 1.852) * math.Pow(l.Diameter, 4.871))
		loss := r * math.Pow(math.Abs(q), 0.852) * q
		dh := st.Head[l.N1] - st.Head[l.N2]
		if math.Abs(loss-dh) > 1e-4 {
			t.Errorf("Link %s: loss %v does not match head drop %v", l.ID, loss, dh)
		}
	}
}

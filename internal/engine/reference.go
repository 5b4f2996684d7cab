package engine

import (
	"context"
	"math"
	"math/rand"

	"github.com/VaninJoel/angiorun/internal/field"
)

// Cell type codes written to the type channel.
const (
	siteMedium = 0.0
	siteStalk  = 1.0
	siteTip    = 2.0
)

// Reference is the built-in sprouting-vessel engine: tip cells random-walk
// up a chemoattractant gradient on a planar lattice, depositing stalk cells
// behind them and occasionally branching.
//
// It exists so a run is executable end to end without an external engine
// binary; its update rules are deliberately simple and not a modeling claim.
// Identical seeds produce identical trajectories.
type Reference struct {
	frame  *field.Frame
	rng    *rand.Rand
	chemo  []float64 // per-site chemoattractant, mirrored into the value channel
	tips   []tipCell
	nextID float64

	lchem    float64 // chemotaxis weight
	adhesion float64 // preference for sites adjacent to existing vessel
	branchP  float64
}

type tipCell struct {
	x, y int
	id   float64
}

// ReferenceConfig selects lattice size, seed, and the model parameters the
// reference engine understands. Unknown parameters are ignored, matching the
// engine's role as an opaque collaborator.
type ReferenceConfig struct {
	NX, NY int
	Seed   int64

	// Parameters is the task's resolved parameter map. Recognized names:
	// lchem (chemotaxis strength), jee and jem (adhesion energies whose
	// difference biases sprouts toward existing vessel).
	Parameters map[string]any
}

// NewReference builds a reference engine with a static left-to-right
// chemoattractant gradient and three seed tips on the left edge.
func NewReference(cfg ReferenceConfig) *Reference {
	nx, ny := cfg.NX, cfg.NY
	if nx <= 0 {
		nx = 64
	}
	if ny <= 0 {
		ny = 64
	}

	r := &Reference{
		frame:   field.New(nx, ny, 1),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		chemo:   make([]float64, nx*ny),
		lchem:   numParam(cfg.Parameters, "lchem", 1.0),
		branchP: 0.02,
		nextID:  1,
	}
	// Jee-Jem sets how strongly a moving tip prefers to stay in contact
	// with vessel it has already laid down.
	r.adhesion = (numParam(cfg.Parameters, "jem", 4) - numParam(cfg.Parameters, "jee", 2)) / 4

	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			c := float64(x) / float64(nx-1)
			r.chemo[x*ny+y] = c
			r.frame.Set(x, y, 0, field.ChannelValue, c)
		}
	}

	for i := 0; i < 3; i++ {
		y := (i + 1) * ny / 4
		r.spawnTip(0, y)
	}

	return r
}

func (r *Reference) spawnTip(x, y int) {
	t := tipCell{x: x, y: y, id: r.nextID}
	r.nextID++
	r.tips = append(r.tips, t)
	r.frame.Set(x, y, 0, field.ChannelType, siteTip)
	r.frame.Set(x, y, 0, field.ChannelCellID, t.id)
}

// Frame returns the engine's current lattice state.
func (r *Reference) Frame() *field.Frame {
	return r.frame
}

// Step advances every tip one site, chosen by a Boltzmann weight over the
// four lattice neighbors.
func (r *Reference) Step(ctx context.Context, step int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nx, ny := r.frame.NX, r.frame.NY
	for i := range r.tips {
		t := &r.tips[i]

		type move struct{ x, y int }
		candidates := []move{{t.x + 1, t.y}, {t.x - 1, t.y}, {t.x, t.y + 1}, {t.x, t.y - 1}}
		weights := make([]float64, 0, len(candidates))
		viable := candidates[:0]
		for _, m := range candidates {
			if m.x < 0 || m.x >= nx || m.y < 0 || m.y >= ny {
				continue
			}
			if r.frame.At(m.x, m.y, 0, field.ChannelType) != siteMedium {
				continue
			}
			w := math.Exp(r.lchem*r.chemo[m.x*ny+m.y] + r.adhesion*r.vesselContacts(m.x, m.y))
			viable = append(viable, m)
			weights = append(weights, w)
		}
		if len(viable) == 0 {
			continue // boxed in; the tip stalls
		}

		m := viable[r.weightedChoice(weights)]

		// The vacated site matures into stalk, keeping the cell id trail.
		r.frame.Set(t.x, t.y, 0, field.ChannelType, siteStalk)

		t.x, t.y = m.x, m.y
		r.frame.Set(t.x, t.y, 0, field.ChannelType, siteTip)
		r.frame.Set(t.x, t.y, 0, field.ChannelCellID, t.id)

		if r.rng.Float64() < r.branchP {
			if bx, by, ok := r.freeNeighbor(t.x, t.y); ok {
				// spawnTip appends to r.tips, which can invalidate t.
				r.spawnTip(bx, by)
			}
		}
	}

	return nil
}

func (r *Reference) freeNeighbor(x, y int) (int, int, bool) {
	dirs := [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	start := r.rng.Intn(len(dirs))
	for i := 0; i < len(dirs); i++ {
		d := dirs[(start+i)%len(dirs)]
		cx, cy := x+d[0], y+d[1]
		if cx < 0 || cx >= r.frame.NX || cy < 0 || cy >= r.frame.NY {
			continue
		}
		if r.frame.At(cx, cy, 0, field.ChannelType) == siteMedium {
			return cx, cy, true
		}
	}
	return 0, 0, false
}

func (r *Reference) vesselContacts(x, y int) float64 {
	n := 0.0
	for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		cx, cy := x+d[0], y+d[1]
		if cx < 0 || cx >= r.frame.NX || cy < 0 || cy >= r.frame.NY {
			continue
		}
		if r.frame.At(cx, cy, 0, field.ChannelType) != siteMedium {
			n++
		}
	}
	return n
}

func (r *Reference) weightedChoice(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	pick := r.rng.Float64() * total
	for i, w := range weights {
		pick -= w
		if pick <= 0 {
			return i
		}
	}
	return len(weights) - 1
}

// numParam reads a numeric parameter with a default, tolerating the loose
// typing of resolved parameter maps (ints, floats, JSON numbers).
func numParam(params map[string]any, name string, def float64) float64 {
	v, ok := params[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

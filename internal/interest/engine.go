// Package interest implements the per-client interest and priority
// engine (spec §4.E): deciding, each server tick, which (entity,
// component) pairs to include in each client's outgoing update,
// bounded by a per-client byte budget and closed over component
// dependencies.
package interest

import (
	"sort"

	"github.com/mlange-42/ark/ecs"
	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/replicate"
)

// Pair is a candidate (entity, component) slot a client may receive.
type Pair struct {
	Entity ecs.Entity
	ID     replicate.ID
}

func less(a, b Pair) bool {
	if a.Entity.ID() != b.Entity.ID() {
		return a.Entity.ID() < b.Entity.ID()
	}
	return a.ID < b.ID
}

// Rates holds the registered per-type priority accrual rate, in
// priority units per second of simulation time (Run multiplies it by
// dt), for each replicate.ID.
type Rates map[replicate.ID]float32

// Accumulator is the mapping (local-entity, ReplicateId) -> priority,
// rising each tick until the pair is sent, then cleared.
type Accumulator struct {
	priority map[Pair]float32
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{priority: make(map[Pair]float32)}
}

func (a *Accumulator) accrue(p Pair, rate float32) {
	a.priority[p] += rate
}

func (a *Accumulator) value(p Pair) float32 {
	return a.priority[p]
}

func (a *Accumulator) clear(p Pair) {
	delete(a.priority, p)
}

// SizeEstimates is a rolling average of encoded size in bytes per
// ReplicateId, used to honor a byte budget without encoding ahead of
// time.
type SizeEstimates struct {
	avg map[replicate.ID]float64
}

// NewSizeEstimates creates an empty estimator; unseen ids estimate at
// defaultEstimate bytes until observed at least once.
func NewSizeEstimates() *SizeEstimates {
	return &SizeEstimates{avg: make(map[replicate.ID]float64)}
}

const defaultEstimate = 16.0
const smoothing = 0.2

// Add folds in a freshly observed encoded size for id (an exponential
// moving average — cheap, bounded memory, tracks drift in encoded size
// without storing history).
func (e *SizeEstimates) Add(id replicate.ID, size int) {
	cur, ok := e.avg[id]
	if !ok {
		e.avg[id] = float64(size)
		return
	}
	e.avg[id] = cur + smoothing*(float64(size)-cur)
}

// Estimate returns the current rolling-average estimate for id.
func (e *SizeEstimates) Estimate(id replicate.ID) float64 {
	if v, ok := e.avg[id]; ok {
		return v
	}
	return defaultEstimate
}

// ClientInterest is one client's candidate set (every (entity,
// component) pair the game logic currently permits that client to
// observe) plus its per-tick byte budget.
type ClientInterest struct {
	Candidates []Pair
	Budget     int
}

// ToSend is the per-client accepted-pairs result of one Engine.Run,
// keyed by client id.
type ToSend map[protocol.ClientID][]Pair

// Engine runs the interest and priority selection once per server tick.
type Engine struct {
	registry *replicate.Registry
	rates    Rates
	accum    *Accumulator
	sizes    *SizeEstimates
	log      *zap.Logger
}

// New creates an interest engine bound to a registry and per-type
// accrual rates.
func New(registry *replicate.Registry, rates Rates, log *zap.Logger) *Engine {
	return &Engine{
		registry: registry,
		rates:    rates,
		accum:    NewAccumulator(),
		sizes:    NewSizeEstimates(),
		log:      log,
	}
}

// Sizes exposes the size estimator so the update pipeline can feed back
// observed encoded sizes after each send.
func (e *Engine) Sizes() *SizeEstimates {
	return e.sizes
}

// Run executes the five-step algorithm of spec §4.E for every client in
// clients, given dt (elapsed simulation time since the last run, in
// seconds, used to scale priority accrual).
func (e *Engine) Run(clients map[protocol.ClientID]ClientInterest, dt float64) ToSend {
	result := make(ToSend, len(clients))

	for client, interest := range clients {
		// Step 1: accrue priority for every candidate this tick.
		for _, p := range interest.Candidates {
			rate := e.rates[p.ID]
			e.accum.accrue(p, rate*float32(dt))
		}

		// Step 2: sort candidates by descending priority, ties broken
		// by (entity, component) order for determinism.
		candidates := append([]Pair(nil), interest.Candidates...)
		sort.Slice(candidates, func(i, j int) bool {
			pi, pj := e.accum.value(candidates[i]), e.accum.value(candidates[j])
			if pi != pj {
				return pi > pj
			}
			return less(candidates[i], candidates[j])
		})

		// Step 3: greedily accept within budget.
		accepted := make(map[Pair]struct{})
		var used int
		for _, p := range candidates {
			size := int(e.sizes.Estimate(p.ID))
			if used+size > interest.Budget {
				continue
			}
			accepted[p] = struct{}{}
			used += size
		}

		// Step 4: close dependencies to a fixpoint, even over budget.
		e.closeDependencies(accepted, &used, interest.Budget, client)

		// Step 5: emit and clear priority of accepted pairs.
		out := make([]Pair, 0, len(accepted))
		for p := range accepted {
			out = append(out, p)
			e.accum.clear(p)
		}
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
		result[client] = out
	}

	return result
}

func (e *Engine) closeDependencies(accepted map[Pair]struct{}, used *int, budget int, client protocol.ClientID) {
	for {
		var added []Pair
		for p := range accepted {
			for _, dep := range e.registry.DependenciesOf(p.ID) {
				depPair := Pair{Entity: p.Entity, ID: dep}
				if _, ok := accepted[depPair]; ok {
					continue
				}
				added = append(added, depPair)
			}
		}
		if len(added) == 0 {
			return
		}
		for _, p := range added {
			accepted[p] = struct{}{}
			size := int(e.sizes.Estimate(p.ID))
			*used += size
			if *used > budget {
				e.log.Warn("dependency closure exceeded client byte budget",
					zap.Uint64("client_id", uint64(client)),
					zap.Int("used", *used),
					zap.Int("budget", budget),
				)
			}
		}
	}
}

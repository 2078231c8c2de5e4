package routing

import (
	"math/rand"
	"sort"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// SmartCandidate is one upstream eligible for smart routing, as seen by
// RouteSmart: its name, whether it is marked secure, its strength tags,
// and its dynamic weight.
type SmartCandidate struct {
	Name      string
	Secure    bool
	Strengths []string // e.g. "code", "math" ; used for task-specific ordering
	Tier      string   // "local", "flash", "default", "strong" ; used for speed ordering
	Weight    float64
}

// SmartRouter implements spec.md's §4.7 routing algorithm: privacy
// filtering, speed-vs-quality preference ordering, and weighted dispatch,
// on top of whatever candidate set the caller supplies. It is independent
// of the legacy provider registry Router above so callers can feed it
// the exact candidate list the fallback executor and breaker registry
// currently consider available.
type SmartRouter struct {
	rng         *rand.Rand
	routingRate float64 // AI_ROUTING_RATE: fraction of requests using preferred-order pick over weighted dispatch
}

// NewSmartRouter builds a SmartRouter. routingRate is AI_ROUTING_RATE; seed
// is supplied by the caller at process startup rather than derived from
// the clock on every call.
func NewSmartRouter(routingRate float64, seed int64) *SmartRouter {
	return &SmartRouter{rng: rand.New(rand.NewSource(seed)), routingRate: routingRate}
}

// speedOrder is the fixed tier preference used when complexity is SIMPLE
// or system health is not HEALTHY.
var speedOrder = []string{"local", "flash", "default", "strong"}

// taskOrder gives the task-specific tier/strength preference used
// otherwise, keyed by classifier task type.
var taskOrder = map[types.TaskType][]string{
	types.TaskCode: {"code", "local", "flash", "default", "strong"},
	types.TaskMath: {"math", "local", "flash", "default", "strong"},
}

// RouteSmart selects a provider from candidates per spec.md §4.7.
func (s *SmartRouter) RouteSmart(privacy types.PrivacyLevel, complexity types.ComplexityCategory, taskType types.TaskType, health types.HealthLabel, candidates []SmartCandidate) types.RoutingRationale {
	filtered := candidates
	if privacy != types.PrivacyPublic {
		filtered = filterSecure(candidates)
		if len(filtered) == 0 {
			return types.RoutingRationale{
				Strategy:     "privacy_filter",
				TaskType:     taskType,
				PrivacyMode:  string(privacy),
				SystemHealth: string(health),
				Reasons:      []string{"No Secure Provider Available"},
			}
		}
	}

	optimization := "QUALITY"
	if complexity == types.ComplexitySimple || health != types.HealthHealthy {
		optimization = "SPEED"
	}

	useWeighted := s.rng.Float64() >= s.routingRate

	var provider string
	var strategy string
	var reasons []string

	if useWeighted {
		provider, reasons = selectWeighted(filtered, s.rng)
		strategy = "weighted"
	} else {
		order := preferredOrder(optimization, taskType)
		provider, reasons = selectByPreferredOrder(filtered, order)
		strategy = "preferred_order"
	}


	return types.RoutingRationale{
		Provider:     provider,
		Strategy:     strategy,
		TaskType:     taskType,
		PrivacyMode:  string(privacy),
		Optimization: optimization,
		SystemHealth: string(health),
		Reasons:      reasons,
	}
}

func filterSecure(candidates []SmartCandidate) []SmartCandidate {
	var out []SmartCandidate
	for _, c := range candidates {
		if c.Secure {
			out = append(out, c)
		}
	}
	return out
}

func preferredOrder(optimization string, taskType types.TaskType) []string {
	if optimization == "SPEED" {
		return speedOrder
	}
	if order, ok := taskOrder[taskType]; ok {
		return order
	}
	return speedOrder
}

// selectByPreferredOrder walks order and returns the first candidate
// present, matching on tier or on a strength tag.
func selectByPreferredOrder(candidates []SmartCandidate, order []string) (string, []string) {
	byTier := make(map[string]SmartCandidate)
	byStrength := make(map[string]SmartCandidate)
	for _, c := range candidates {
		if c.Tier != "" {
			if _, exists := byTier[c.Tier]; !exists {
				byTier[c.Tier] = c
			}
		}
		for _, strength := range c.Strengths {
			if _, exists := byStrength[strength]; !exists {
				byStrength[strength] = c
			}
		}
	}

	for _, key := range order {
		if c, ok := byStrength[key]; ok {
			return c.Name, []string{"matched preferred key " + key}
		}
		if c, ok := byTier[key]; ok {
			return c.Name, []string{"matched preferred tier " + key}
		}
	}

	if len(candidates) == 0 {
		return "", []string{"no candidates available"}
	}
	return candidates[0].Name, []string{"no preferred-order match, used first available candidate"}
}

// selectWeighted performs a weighted random draw over candidates' dynamic
// weights, mapping r in [0, sum(weights)) by prefix sum. Candidates with
// zero or negative weight never win; if every weight is non-positive,
// falls back to a uniform pick so routing still makes progress.
func selectWeighted(candidates []SmartCandidate, rng *rand.Rand) (string, []string) {
	if len(candidates) == 0 {
		return "", []string{"no candidates available"}
	}

	ordered := append([]SmartCandidate(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	var total float64
	for _, c := range ordered {
		if c.Weight > 0 {
			total += c.Weight
		}
	}

	if total <= 0 {
		pick := ordered[rng.Intn(len(ordered))]
		return pick.Name, []string{"all weights non-positive, used uniform fallback"}
	}

	r := rng.Float64() * total
	var cumulative float64
	for _, c := range ordered {
		if c.Weight <= 0 {
			continue
		}
		cumulative += c.Weight
		if r < cumulative {
			return c.Name, []string{"weighted draw selected this upstream"}
		}
	}
	last := ordered[len(ordered)-1]
	return last.Name, []string{"weighted draw fell through to last candidate"}
}

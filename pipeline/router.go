package pipeline

import "github.com/poiesic/sibyl/core"

// RouteAction is the retrieval strategy selected for a query.
type RouteAction int

const (
	// ActionDirect skips retrieval and goes straight to generation.
	ActionDirect RouteAction = iota + 1
	// ActionVectorOnly consults only the knowledge store.
	ActionVectorOnly
	// ActionSearchOnly consults only the web-search backend.
	ActionSearchOnly
	// ActionBoth consults both sources in parallel.
	ActionBoth
)

// String returns the wire name of the action.
func (a RouteAction) String() string {
	switch a {
	case ActionDirect:
		return "direct"
	case ActionVectorOnly:
		return "vector_only"
	case ActionSearchOnly:
		return "search_only"
	case ActionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// defaultConfidenceFloor is the classification confidence under which the
// router ignores the intent and retrieves from both sources.
const defaultConfidenceFloor = 0.5

// RouteQuery maps a query analysis to a retrieval action.
//
// The decision table:
//   - off_topic: Direct (guardrail generation, no retrieval)
//   - historical, technical: VectorOnly
//   - current_info: Both (web prioritized for freshness, vector for
//     supporting context)
//   - prediction, general, or confidence below the floor: Both
//
// A nil analysis is treated as a low-confidence general query.
func RouteQuery(analysis *core.QueryAnalysis, confidenceFloor float32) RouteAction {
	if analysis == nil {
		return ActionBoth
	}
	if analysis.Intent == core.IntentOffTopic {
		return ActionDirect
	}
	if analysis.Confidence < confidenceFloor {
		return ActionBoth
	}

	switch analysis.Intent {
	case core.IntentHistorical, core.IntentTechnical:
		return ActionVectorOnly
	case core.IntentCurrentInfo, core.IntentPrediction, core.IntentGeneral:
		return ActionBoth
	default:
		return ActionBoth
	}
}

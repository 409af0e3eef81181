package insight

import (
	"github.com/unfoldindia/unfold/internal/llm"
)

// Category is an insight kind. Each category has its own prompt and its
// own default result.
type Category string

const (
	CategoryProgress Category = "progress"
)

type kind struct {
	request  func(snapshot map[string]any) *llm.Request
	fallback Result
}

var kinds = map[Category]kind{
	CategoryProgress: {
		request: progressRequest,
		fallback: Result{
			Insight:       "You're making great progress exploring India! Every state you visit adds a new chapter to your journey.",
			FocusArea:     "Explore a new region",
			NextMilestone: "Visit your next state",
			ActionTip:     "Pick one unexplored region and plan a weekend trip there.",
		},
	},
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	_, ok := kinds[c]
	return c, ok
}

// ProgressSnapshot is the progress state a client sends.
type ProgressSnapshot struct {
	IndiaProgress     float64  `json:"india_progress"`
	TopTravelStyles   []string `json:"top_travel_styles"`
	UnlockedBadges    []string `json:"unlocked_badges"`
	UnexploredRegions []string `json:"unexplored_regions"`
}

// progressFromSnapshot reads the known fields, ignoring anything malformed.
func progressFromSnapshot(snapshot map[string]any) ProgressSnapshot {
	var p ProgressSnapshot
	if v, ok := snapshot["india_progress"].(float64); ok {
		p.IndiaProgress = v
	}
	p.TopTravelStyles = stringList(snapshot["top_travel_styles"])
	p.UnlockedBadges = stringList(snapshot["unlocked_badges"])
	p.UnexploredRegions = stringList(snapshot["unexplored_regions"])
	return p
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func progressRequest(snapshot map[string]any) *llm.Request {
	p := progressFromSnapshot(snapshot)
	req := llm.Prompt(llm.ProgressInsightPrompt(p.IndiaProgress, p.TopTravelStyles, p.UnlockedBadges, p.UnexploredRegions))
	req.Schema = llm.ProgressInsightSchema
	req.MaxTokens = 400
	req.Temperature = 0.7
	return req
}

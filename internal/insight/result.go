package insight

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is a generated insight. Rows cached before the structured format
// only carry Insight; the other fields are then absent.
type Result struct {
	Insight       string `json:"insight"`
	FocusArea     string `json:"focus_area,omitempty"`
	NextMilestone string `json:"next_milestone,omitempty"`
	ActionTip     string `json:"action_tip,omitempty"`
}

// parseResult extracts the four-field JSON object from a generator reply.
// Missing, empty, non-string or extra fields are all parse failures.
func parseResult(content string) (Result, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("no JSON object found in response")
	}

	var raw struct {
		Insight       *string `json:"insight"`
		FocusArea     *string `json:"focus_area"`
		NextMilestone *string `json:"next_milestone"`
		ActionTip     *string `json:"action_tip"`
	}
	dec := json.NewDecoder(strings.NewReader(content[start : end+1]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}

	fields := []struct {
		name string
		val  *string
	}{
		{"insight", raw.Insight},
		{"focus_area", raw.FocusArea},
		{"next_milestone", raw.NextMilestone},
		{"action_tip", raw.ActionTip},
	}
	for _, f := range fields {
		if f.val == nil || strings.TrimSpace(*f.val) == "" {
			return Result{}, fmt.Errorf("missing field %q", f.name)
		}
	}

	return Result{
		Insight:       strings.TrimSpace(*raw.Insight),
		FocusArea:     strings.TrimSpace(*raw.FocusArea),
		NextMilestone: strings.TrimSpace(*raw.NextMilestone),
		ActionTip:     strings.TrimSpace(*raw.ActionTip),
	}, nil
}

// decodeStored reads a cached payload. Payloads that are not a JSON object
// with insight text come from the plain-text era and are wrapped as the
// insight text.
func decodeStored(payload string) Result {
	var r Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil || r.Insight == "" {
		return Result{Insight: payload}
	}
	return r
}

package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TravelGuideSystem is the persona used for conversational chat.
const TravelGuideSystem = `Role: Kira, an expert Indian travel guide for the Unfold India app.

Guidelines:
1. Accuracy first: real place names, correct locations and current prices in INR.
2. General chat is short, at most 60 words: a direct answer in one or two sentences plus one **Pro Tip**.
   Do not add unrequested sections such as overviews, security notes or opening hours.
   Do not produce day-wise plans unless asked.
3. Formatting: **bold** for key terms, bullet points for lists.
4. Itineraries are the exception. When the user asks for an itinerary or a plan, ignore the length
   limit and write the most detailed plan you can: Morning (activity and location), Lunch (a specific
   restaurant and dish), Afternoon (hidden gems), Evening (the vibe).
5. Scope is India only. Politely redirect anything else.
6. Emoji: minimal and tasteful.`

// ProgressInsightSchema is the structured-output contract for progress insights.
var ProgressInsightSchema = &Schema{
	Name: "progress_insight",
	Type: "object",
	Properties: map[string]*Schema{
		"insight":        {Type: "string", Description: "Two sentences on what the traveller's progress says about them"},
		"focus_area":     {Type: "string", Description: "The single region or theme to explore next"},
		"next_milestone": {Type: "string", Description: "A concrete, reachable next badge or percentage"},
		"action_tip":     {Type: "string", Description: "One practical step to take this month"},
	},
	Required:             []string{"insight", "focus_area", "next_milestone", "action_tip"},
	AdditionalProperties: false,
}

// ProgressInsightPrompt builds the user prompt for a progress insight.
func ProgressInsightPrompt(progress float64, styles, badges, unexplored []string) string {
	return fmt.Sprintf(`You are Kira, the Unfold India travel coach. Look at this traveller's exploration progress
and write a short, encouraging, specific insight.

EXPLORED: %.0f%% of India
TOP TRAVEL STYLES: %s
UNLOCKED BADGES: %s
UNEXPLORED REGIONS: %s

Rules:
- Be specific to India and to the data above
- Never invent badges the traveller does not have
- Return ONLY a JSON object with exactly these string fields, no other text:
{"insight": "...", "focus_area": "...", "next_milestone": "...", "action_tip": "..."}`,
		progress, listOrNone(styles), listOrNone(badges), listOrNone(unexplored))
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none yet"
	}
	return strings.Join(items, ", ")
}

// withSchemaInstruction appends a JSON-only instruction for providers that
// cannot enforce a schema natively.
func withSchemaInstruction(system string, schema *Schema) string {
	if schema == nil {
		return system
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return system
	}
	instruction := "Respond with a single JSON object matching this JSON Schema and nothing else:\n" + string(raw)
	if system == "" {
		return instruction
	}
	return system + "\n\n" + instruction
}

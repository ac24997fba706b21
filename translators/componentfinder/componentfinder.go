// Package componentfinder is the reference translator. It picks the catalog
// components relevant to a request, asks the LLM binding for a component
// graph and returns the reply wrapped in the envelope the copilot decodes.
//
// The package is loaded from source by the copilot's interpreter, so it only
// imports packages on the default allow-list plus the llm binding.
package componentfinder

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"ghcopilot/pkg/llm"
)

// DefaultMaxComponents caps how many catalog entries are described to the LLM.
const DefaultMaxComponents = 15

// keywordMap boosts components whose name contains a related term when the
// keyword appears in the request.
var keywordMap = map[string][]string{
	"circle":       {"Circle", "Radius", "Center"},
	"line":         {"Line", "Start", "End"},
	"point":        {"Point", "Construct Point"},
	"curve":        {"Curve", "Interpolate", "Divide Curve"},
	"surface":      {"Surface", "Boundary Surface", "Extrude"},
	"move":         {"Move", "Transform"},
	"rotate":       {"Rotate", "Orient"},
	"scale":        {"Scale", "Transform"},
	"slider":       {"Number Slider", "Slider"},
	"panel":        {"Panel"},
	"divide":       {"Divide", "Divide Curve", "Split"},
	"boolean":      {"Boolean", "Difference", "Union", "Intersection"},
	"intersection": {"Intersection", "Brep|Brep", "Curve|Curve"},
	"extrude":      {"Extrude", "ExtrudeCrv"},
	"loft":         {"Loft", "LoftSrf"},
	"random":       {"Random", "Jitter", "Populate"},
	"grid":         {"Grid", "Rectangular", "Hexagonal"},
	"vector":       {"Vector", "Direction", "Vector XYZ"},
	"array":        {"Series", "Range", "Repeat"},
	"color":        {"Color", "Gradient", "ColourRGB"},
	"mesh":         {"Mesh", "MeshSrf", "MeshPlane"},
	"text":         {"Text", "TextTag", "FontList"},
}

// Component is one catalog entry. Inputs and outputs are either parameter
// objects or bare strings.
type Component struct {
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Subcategory string            `json:"subcategory"`
	Description string            `json:"description"`
	Inputs      []json.RawMessage `json:"inputs"`
	Outputs     []json.RawMessage `json:"outputs"`
}

type param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Finder is a translator instance. The copilot creates a fresh one per request.
type Finder struct {
	MaxComponents int
}

// New returns a Finder with default settings.
func New() *Finder {
	return &Finder{MaxComponents: DefaultMaxComponents}
}

// Main translates query into the copilot's response envelope. Failures that
// belong to the request (bad catalog, LLM errors) are reported inside the
// envelope; the error return is reserved for failures to produce one at all.
func (f *Finder) Main(query, catalogPath, credential, outputPath string) (string, error) {
	components, err := LoadCatalog(catalogPath)
	if err != nil {
		return envelope(map[string]interface{}{"error": err.Error()})
	}
	fmt.Printf("loaded %d components from %s\n", len(components), catalogPath)

	relevant := SelectRelevant(components, query, f.MaxComponents)
	content, err := llm.Complete(credential, SystemPrompt(relevant), UserPrompt(query))
	if err != nil {
		return envelope(map[string]interface{}{"error": "Error calling LLM API: " + err.Error()})
	}

	content = StripFence(content)
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return envelope(map[string]interface{}{"response": content, "json_error": err.Error()})
	}

	if outputPath != "" {
		pretty, err := json.MarshalIndent(data, "", "  ")
		if err == nil {
			err = os.WriteFile(outputPath, pretty, 0644)
		}
		if err != nil {
			fmt.Printf("could not write %s: %v\n", outputPath, err)
		}
	}
	return envelope(map[string]interface{}{"response": content, "json_data": data})
}

// LoadCatalog reads the component catalog, a non-empty JSON array.
func LoadCatalog(path string) ([]Component, error) {
	if path == "" {
		return nil, fmt.Errorf("no component catalog configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("File not found: %s", path)
		}
		return nil, fmt.Errorf("Error loading component database: %v", err)
	}
	var components []Component
	if err := json.Unmarshal(raw, &components); err != nil {
		return nil, fmt.Errorf("Invalid component data structure: %v", err)
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("Invalid component data structure: catalog is empty")
	}
	return components, nil
}

type scored struct {
	score     int
	component Component
}

// SelectRelevant scores components against the request and returns the best
// limit of them, highest score first. Components scoring zero are dropped.
func SelectRelevant(components []Component, query string, limit int) []Component {
	q := strings.ToLower(query)
	words := strings.Fields(q)

	var ranked []scored
	for _, c := range components {
		name := strings.ToLower(c.Name)
		desc := strings.ToLower(c.Description)
		score := 0
		for _, w := range words {
			if strings.Contains(name, w) || strings.Contains(desc, w) {
				score += 3
			}
		}
		for keyword, related := range keywordMap {
			if !strings.Contains(q, keyword) {
				continue
			}
			for _, r := range related {
				if strings.Contains(name, strings.ToLower(r)) {
					score += 5
				}
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{score: score, component: c})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Component, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.component)
	}
	return out
}

// Describe formats one component for the system prompt.
func Describe(c Component) string {
	var b strings.Builder
	b.WriteString("Component: " + orUnknown(c.Name) + " (Category: " + orUnknown(c.Category))
	if c.Subcategory != "" {
		b.WriteString(", Subcategory: " + c.Subcategory)
	}
	b.WriteString(")\n")
	if c.Description != "" {
		b.WriteString("Description: " + c.Description + "\n")
	}
	if in := formatParams(c.Inputs); in != "" {
		b.WriteString("Inputs: " + in + "\n")
	}
	if out := formatParams(c.Outputs); out != "" {
		b.WriteString("Outputs: " + out + "\n")
	}
	return b.String()
}

func formatParams(params []json.RawMessage) string {
	var parts []string
	for _, raw := range params {
		var p param
		if err := json.Unmarshal(raw, &p); err == nil {
			parts = append(parts, fmt.Sprintf("%s (%s): %s", orUnknown(p.Name), p.Type, p.Description))
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

const responseSchema = `{
  "explanation": "A brief explanation of the approach",
  "components": [
    {
      "id": "unique_id_1",
      "name": "ComponentName",
      "category": "Category",
      "subcategory": "Subcategory",
      "position": {"x": 0, "y": 0},
      "parameters": [{"name": "ParameterName", "value": "Value"}]
    }
  ],
  "connections": [
    {
      "fromComponent": "unique_id_1",
      "fromOutput": "OutputName",
      "toComponent": "unique_id_2",
      "toInput": "InputName"
    }
  ]
}`

// SystemPrompt builds the instructions sent with every request.
func SystemPrompt(relevant []Component) string {
	described := make([]string, 0, len(relevant))
	for _, c := range relevant {
		described = append(described, Describe(c))
	}

	var b strings.Builder
	b.WriteString("You are an assistant that helps users find and use the right Grasshopper components.\n")
	b.WriteString("When given a task description, suggest the appropriate Grasshopper components to accomplish it.\n")
	b.WriteString("Only suggest components that exist in the Grasshopper ecosystem.\n\n")
	b.WriteString("Here are Grasshopper components that might be relevant to the user's request:\n\n")
	b.WriteString(strings.Join(described, "\n"))
	b.WriteString("\nYour task is to provide a JSON response that a program can use to automatically create and connect\n")
	b.WriteString("Grasshopper components on the canvas. Your response MUST include a valid JSON object with this structure:\n\n")
	b.WriteString("```json\n" + responseSchema + "\n```\n\n")
	b.WriteString("Follow these guidelines:\n")
	b.WriteString("1. Only suggest components that exist in the provided list\n")
	b.WriteString("2. Position components logically on the canvas (left to right, data flow)\n")
	b.WriteString("3. Make sure all connections are valid (outputs connect to appropriate inputs)\n")
	b.WriteString("4. For simple number parameters, use the \"parameters\" field\n")
	b.WriteString("5. Canvas positions should use relative coordinates, with the first component at (0,0) and subsequent components at reasonable distances (e.g., 100 units apart)\n\n")
	b.WriteString("Be sure your output is a VALID JSON object. Do not include any text before or after the JSON. ")
	b.WriteString("The entire response must be parseable as a single JSON object.\n")
	return b.String()
}

// UserPrompt wraps the request text.
func UserPrompt(query string) string {
	return "I want to accomplish this in Grasshopper: " + query
}

// StripFence returns the body of the first ```json (or bare ```) fence in
// content, or content unchanged when it has none.
func StripFence(content string) string {
	if i := strings.Index(content, "```json"); i >= 0 {
		return untilFence(content[i+len("```json"):])
	}
	if i := strings.Index(content, "```"); i >= 0 {
		return untilFence(content[i+3:])
	}
	return content
}

func untilFence(s string) string {
	if j := strings.Index(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}

func envelope(v map[string]interface{}) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

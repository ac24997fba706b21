// Package response decodes the translator's JSON payload into a typed Response.
//
// The payload envelope is
//
//	{"json_data": {"explanation": "...", "components": [...], "connections": [...]}}
//
// Component and connection descriptors are opaque and forwarded as raw JSON.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed means the payload is not a JSON object.
var ErrMalformed = errors.New("malformed translator response")

// MissingFieldError means a required field is absent or has the wrong type.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("translator response is missing field %q", e.Field)
}

// TranslatorError carries an error the translator reported in its envelope.
type TranslatorError struct {
	Message string
}

func (e *TranslatorError) Error() string {
	return "translator reported: " + e.Message
}

// Response is a decoded translator reply. Components and Connections are
// never nil.
type Response struct {
	Explanation string
	Components  []json.RawMessage
	Connections []json.RawMessage
}

type envelope struct {
	JSONData  json.RawMessage `json:"json_data"`
	Error     *string         `json:"error"`
	JSONError *string         `json:"json_error"`
}

type body struct {
	Explanation *string           `json:"explanation"`
	Components  []json.RawMessage `json:"components"`
	Connections []json.RawMessage `json:"connections"`
}

// Decode parses payload. It fails closed: anything that is not a well-formed
// envelope with json_data.explanation is an error, never a partial Response.
func Decode[P ~string | ~[]byte](payload P) (Response, error) {
	data := bytes.TrimSpace([]byte(payload))
	if len(data) == 0 || data[0] != '{' {
		return Response{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if len(env.JSONData) == 0 || string(env.JSONData) == "null" {
		switch {
		case env.Error != nil:
			return Response{}, &TranslatorError{Message: *env.Error}
		case env.JSONError != nil:
			return Response{}, &TranslatorError{Message: *env.JSONError}
		}
		return Response{}, &MissingFieldError{Field: "json_data"}
	}
	if env.JSONData[0] != '{' {
		return Response{}, &MissingFieldError{Field: "json_data"}
	}

	var b body
	if err := json.Unmarshal(env.JSONData, &b); err != nil {
		return Response{}, fmt.Errorf("%w: json_data: %v", ErrMalformed, err)
	}
	if b.Explanation == nil {
		return Response{}, &MissingFieldError{Field: "explanation"}
	}

	r := Response{
		Explanation: *b.Explanation,
		Components:  b.Components,
		Connections: b.Connections,
	}
	if r.Components == nil {
		r.Components = []json.RawMessage{}
	}
	if r.Connections == nil {
		r.Connections = []json.RawMessage{}
	}
	return r, nil
}

// ComponentNames returns "name (category/subcategory)" for each component
// descriptor that has a name. Descriptors of other shapes are skipped.
func (r Response) ComponentNames() []string {
	var out []string
	for _, raw := range r.Components {
		var c struct {
			Name        string `json:"name"`
			Category    string `json:"category"`
			Subcategory string `json:"subcategory"`
		}
		if json.Unmarshal(raw, &c) != nil || c.Name == "" {
			continue
		}
		var where []string
		for _, s := range []string{c.Category, c.Subcategory} {
			if s != "" {
				where = append(where, s)
			}
		}
		if len(where) == 0 {
			out = append(out, c.Name)
			continue
		}
		out = append(out, fmt.Sprintf("%s (%s)", c.Name, strings.Join(where, "/")))
	}
	return out
}

// ConnectionLines returns "from (output) -> to (input)" for each connection
// descriptor naming both ends. Both the short form (from, output, to, input)
// and the long form (fromComponent, fromOutput, toComponent, toInput) are read.
func (r Response) ConnectionLines() []string {
	var out []string
	for _, raw := range r.Connections {
		var c struct {
			From          string `json:"from"`
			Output        string `json:"output"`
			To            string `json:"to"`
			Input         string `json:"input"`
			FromComponent string `json:"fromComponent"`
			FromOutput    string `json:"fromOutput"`
			ToComponent   string `json:"toComponent"`
			ToInput       string `json:"toInput"`
		}
		if json.Unmarshal(raw, &c) != nil {
			continue
		}
		from, to := first(c.FromComponent, c.From), first(c.ToComponent, c.To)
		if from == "" || to == "" {
			continue
		}
		if o := first(c.FromOutput, c.Output); o != "" {
			from += " (" + o + ")"
		}
		if i := first(c.ToInput, c.Input); i != "" {
			to += " (" + i + ")"
		}
		out = append(out, from+" -> "+to)
	}
	return out
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

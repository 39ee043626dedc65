package caption

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when the service body is not valid JSON.
var ErrMalformedResponse = errors.New("malformed caption response")

// Shape tells which of the known answer layouts the service used.
type Shape int

const (
	// ShapeUnrecognized covers every answer without a usable generated_text.
	ShapeUnrecognized Shape = iota
	// ShapeList is [{"generated_text": "..."}, ...].
	ShapeList
	// ShapeObject is {"generated_text": "..."}.
	ShapeObject
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeObject:
		return "object"
	default:
		return "unrecognized"
	}
}

// Response is the decoded answer of the caption service.
type Response struct {
	shape Shape
	text  string
}

func (r Response) Shape() Shape {
	return r.shape
}

// Caption returns the generated text and whether the answer carried one.
func (r Response) Caption() (string, bool) {
	switch r.shape {
	case ShapeList, ShapeObject:
		return r.text, true
	default:
		return "", false
	}
}

type generation struct {
	GeneratedText *string `json:"generated_text"`
}

// DecodeResponse classifies body by its top-level JSON value.
// A list only counts when its first element is an object with a string generated_text;
// a bare object only counts when it has one itself.
func DecodeResponse(body []byte) (Response, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return Response{}, fmt.Errorf("%w: %q", ErrMalformedResponse, truncate(string(trimmed), 64))
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if len(items) == 0 {
			return Response{shape: ShapeUnrecognized}, nil
		}
		if text, ok := generatedText(items[0]); ok {
			return Response{shape: ShapeList, text: text}, nil
		}
	case '{':
		if text, ok := generatedText(trimmed); ok {
			return Response{shape: ShapeObject, text: text}, nil
		}
	}
	return Response{shape: ShapeUnrecognized}, nil
}

func generatedText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return "", false
	}
	var g generation
	if err := json.Unmarshal(raw, &g); err != nil || g.GeneratedText == nil {
		return "", false
	}
	return *g.GeneratedText, true
}

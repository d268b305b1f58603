// Package job defines the envelope sent to the test server for each commit
// and the record kept for every completed exchange.
package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// StatusSuccess is the response type the server sends for a finished test run.
	// Every other type counts as a failure in the summary.
	StatusSuccess = "test_results"

	// StatusUnknown is recorded when a response carries no usable type field.
	StatusUnknown = "unknown"

	// ShortHashLen is the commit prefix length used in console output.
	ShortHashLen = 7
)

// ErrNotObject is returned when a response decodes as JSON but is not an object.
var ErrNotObject = errors.New("response is not a JSON object")

// ID is a user or chat identifier. Config files may write it as a number, a
// boolean or a string; the envelope echoes whichever form was configured.
type ID struct {
	value   string
	literal bool // written to JSON unquoted
}

// NewID returns a string identifier.
func NewID(s string) ID { return ID{value: s} }

// NumericID returns an identifier that is sent as a JSON number.
func NumericID(n int64) ID { return ID{value: strconv.FormatInt(n, 10), literal: true} }

// String returns the identifier text.
func (id ID) String() string { return id.value }

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool { return id.value == "" }

// UnmarshalYAML keeps numeric and boolean scalars unquoted so they round-trip
// onto the wire.
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: identifier must be a scalar", node.Line)
	}
	id.value, id.literal = node.Value, false
	switch node.ShortTag() {
	case "!!int", "!!float":
		id.literal = true
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(node.Value))
		if err != nil {
			return fmt.Errorf("line %d: identifier: %w", node.Line, err)
		}
		id.value, id.literal = strconv.FormatBool(b), true
	}
	return nil
}

// UnmarshalJSON accepts strings, numbers and booleans, keeping numbers and
// booleans exactly as written.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id.value, id.literal = s, false
	case '{', '[':
		return errors.New("identifier must be a string, number or boolean")
	default:
		id.value, id.literal = string(data), true
	}
	return nil
}

// MarshalJSON writes numbers and booleans bare and everything else quoted.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.literal && json.Valid([]byte(id.value)) {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// Request is the envelope that asks the server to test one commit.
type Request struct {
	UserID      ID      `json:"userId"`
	ChatID      ID      `json:"chatId"`
	RepoURL     string  `json:"repoURL"`
	CommitHash  string  `json:"commitHash"`
	ProjectType string  `json:"projectType"`
	TestCommand *string `json:"testCommand"`
}

// Template holds the request fields shared by every commit in a run.
type Template struct {
	UserID      ID
	ChatID      ID
	RepoURL     string
	ProjectType string
	TestCommand string // empty means null on the wire
}

// For builds the request for a single commit.
func (t Template) For(commit string) Request {
	req := Request{
		UserID:      t.UserID,
		ChatID:      t.ChatID,
		RepoURL:     t.RepoURL,
		CommitHash:  commit,
		ProjectType: t.ProjectType,
	}
	if t.TestCommand != "" {
		cmd := t.TestCommand
		req.TestCommand = &cmd
	}
	return req
}

// Response is a decoded server message.
type Response struct {
	Type string
	Raw  json.RawMessage
}

// Passed reports whether the server declared a finished test run.
func (r Response) Passed() bool { return r.Type == StatusSuccess }

// DecodeResponse parses a server message. The type field is optional; a
// missing or non-string type is reported as StatusUnknown.
func DecodeResponse(payload []byte) (Response, error) {
	trimmed := bytes.TrimSpace(payload)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Response{}, ErrNotObject
		}
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if fields == nil {
		return Response{}, ErrNotObject
	}

	resp := Response{Type: StatusUnknown, Raw: json.RawMessage(trimmed)}
	if raw, ok := fields["type"]; ok {
		var typ string
		if err := json.Unmarshal(raw, &typ); err == nil {
			resp.Type = typ
		}
	}
	return resp, nil
}

// Result is the record kept for one completed request/response exchange.
type Result struct {
	Commit   string
	Status   string
	Elapsed  time.Duration
	Response json.RawMessage
}

// Passed reports whether the result counts as a success.
func (r Result) Passed() bool { return r.Status == StatusSuccess }

// Seconds returns the elapsed time in seconds.
func (r Result) Seconds() float64 { return r.Elapsed.Seconds() }

// ShortHash truncates a commit hash to its first ShortHashLen characters.
func ShortHash(commit string) string {
	if len(commit) <= ShortHashLen {
		return commit
	}
	runes := []rune(commit)
	if len(runes) <= ShortHashLen {
		return commit
	}
	return string(runes[:ShortHashLen])
}

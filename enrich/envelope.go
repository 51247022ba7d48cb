package enrich

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed covers responses that are not the expected JSON envelope.
	ErrMalformed = errors.New("enrich: malformed response")
	// ErrSchemaMismatch is returned when body is neither a JSON-encoded string
	// nor a JSON object.
	ErrSchemaMismatch = errors.New("enrich: response body has unexpected shape")
	// ErrApplication is an error reported by the remote function itself.
	ErrApplication = errors.New("enrich: remote function reported an error")
	ErrMissingID   = errors.New("enrich: response has no product._id")
)

type envelope struct {
	StatusCode *int            `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

type responseBody struct {
	Product *struct {
		ID json.RawMessage `json:"_id"`
	} `json:"product"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ParseResponse extracts product._id from a function response of the form
// {"statusCode": 200, "body": "<json>"}. A body that is already a JSON object
// is accepted as well.
func ParseResponse(payload []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	raw := bytes.TrimSpace(env.Body)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: envelope has no body", ErrMalformed)
	}

	var bodyJSON []byte
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		bodyJSON = []byte(s)
	case '{':
		bodyJSON = raw
	default:
		return "", fmt.Errorf("%w: body starts with %q, want a JSON string or object", ErrSchemaMismatch, raw[0])
	}

	var body responseBody
	if err := json.Unmarshal(bodyJSON, &body); err != nil {
		if env.StatusCode != nil && *env.StatusCode >= 400 {
			return "", fmt.Errorf("%w: status %d: %s", ErrApplication, *env.StatusCode, truncate(string(bodyJSON), 200))
		}
		return "", fmt.Errorf("%w: body is not a JSON object: %w", ErrSchemaMismatch, err)
	}

	if env.StatusCode != nil && *env.StatusCode >= 400 {
		return "", fmt.Errorf("%w: status %d: %s", ErrApplication, *env.StatusCode, body.reason())
	}
	if body.Product == nil {
		if r := body.reason(); r != "" {
			return "", fmt.Errorf("%w: %s", ErrApplication, r)
		}
		return "", ErrMissingID
	}

	var id string
	if err := json.Unmarshal(body.Product.ID, &id); err != nil || id == "" {
		return "", ErrMissingID
	}
	return id, nil
}

func (b responseBody) reason() string {
	switch {
	case b.Error != "" && b.Message != "":
		return b.Message + ": " + b.Error
	case b.Error != "":
		return b.Error
	default:
		return b.Message
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

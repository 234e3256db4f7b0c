package abillio

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// envelope fields added to every payload
const (
	fieldRequest = "request"
	fieldNonce   = "nonce"
)

// RequestPath returns the canonical request path for an endpoint, e.g. "freelancers/123" -> "/v1/freelancers/123/".
// The endpoint is not validated.
func RequestPath(endpoint string) string {
	return "/v1/" + endpoint + "/"
}

// Envelope is the signed document. JSON holds the only serialization of it:
// the same bytes are base64 encoded into the payload header and signed.
type Envelope struct {
	Path  string
	Nonce int64
	JSON  []byte
}

// BuildEnvelope serializes payload and adds the request and nonce fields.
//
// Key order in the result is explicit:
//   - the payload keys, in the order encoding/json writes them (struct field order, sorted map keys, or as given for json.RawMessage)
//   - "request", then "nonce"
//
// If the payload already has a "request" or "nonce" key its value is replaced where it stands.
// A nil payload is treated as an empty object; anything that is not a JSON object is rejected.
func BuildEnvelope(endpoint string, payload any, nonce int64) (*Envelope, error) {
	doc, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	path := RequestPath(endpoint)

	doc, err = sjson.SetBytes(doc, fieldRequest, path)
	if err != nil {
		return nil, fmt.Errorf("setting %s field: %w", fieldRequest, err)
	}
	doc, err = sjson.SetBytes(doc, fieldNonce, nonce)
	if err != nil {
		return nil, fmt.Errorf("setting %s field: %w", fieldNonce, err)
	}

	return &Envelope{
		Path:  path,
		Nonce: nonce,
		JSON:  doc,
	}, nil
}

func encodePayload(payload any) ([]byte, error) {
	var doc []byte
	switch p := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return []byte("{}"), nil
		}
		doc = append([]byte(nil), p...) // sjson may write into the slice it is given
	case []byte:
		doc = append([]byte(nil), p...)
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling payload: %w", err)
		}
		doc = b
	}

	if !gjson.ValidBytes(doc) {
		return nil, errors.New("payload is not valid JSON")
	}
	res := gjson.ParseBytes(doc)
	switch {
	case res.Type == gjson.Null:
		return []byte("{}"), nil
	case !res.IsObject():
		return nil, fmt.Errorf("payload must be a JSON object, got %s", res.Type)
	}
	return doc, nil
}

package abillio

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	HeaderKey       = "X-ABILLIO-KEY"
	HeaderPayload   = "X-ABILLIO-PAYLOAD"
	HeaderSignature = "X-ABILLIO-SIGNATURE"
)

// SignedHeaders are the authentication headers sent with every request
type SignedHeaders struct {
	Key       string
	Payload   string // base64 of the envelope JSON
	Signature string // hex HMAC-SHA256 of Payload
}

// Sign returns the hex encoded HMAC-SHA256 of encodedPayload keyed by secret
func Sign(secret, encodedPayload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encodedPayload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over encodedPayload and compares it in constant time.
func Verify(secret, encodedPayload, signature string) bool {
	expected := Sign(secret, encodedPayload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// NewSignedHeaders encodes the envelope and signs the encoded value
func NewSignedHeaders(creds Credentials, env *Envelope) SignedHeaders {
	encoded := base64.StdEncoding.EncodeToString(env.JSON)
	return SignedHeaders{
		Key:       creds.APIKey,
		Payload:   encoded,
		Signature: Sign(creds.APISecret, encoded),
	}
}

func (h SignedHeaders) Apply(header http.Header) {
	header.Set(HeaderKey, h.Key)
	header.Set(HeaderPayload, h.Payload)
	header.Set(HeaderSignature, h.Signature)
}

// SignedHeadersFrom reads the authentication headers from an incoming request
func SignedHeadersFrom(header http.Header) SignedHeaders {
	return SignedHeaders{
		Key:       header.Get(HeaderKey),
		Payload:   header.Get(HeaderPayload),
		Signature: header.Get(HeaderSignature),
	}
}

// DecodePayload returns the envelope JSON carried in the payload header
func (h SignedHeaders) DecodePayload() ([]byte, error) {
	return base64.StdEncoding.DecodeString(h.Payload)
}

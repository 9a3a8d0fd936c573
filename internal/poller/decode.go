package poller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

const (
	mediaTypeJSON = "application/json"
	mediaTypeCBOR = "application/cbor"

	acceptHeader = mediaTypeCBOR + ", " + mediaTypeJSON + ";q=0.9"
)

// cborDecMode decodes CBOR maps into map[string]any so payloads have the
// same untyped shape as JSON ones.
var cborDecMode = mustDecMode(cbor.DecOptions{
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	DupMapKey:      cbor.DupMapKeyEnforcedAPF,
})

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("invalid CBOR decode options: %v", err))
	}
	return dm
}

// DecodeError reports a response body that is not a well-formed JSON or
// CBOR document. The transfer succeeded; the payload itself is bad.
type DecodeError struct {
	// Format is "JSON" or "CBOR".
	Format string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s body: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// decodeBody turns a response body into an untyped document. Malformed
// bodies are reported as a [*DecodeError].
func decodeBody(contentType string, body []byte) (any, error) {
	mediaType := mediaTypeJSON
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = mt
		}
	}

	var doc any
	switch mediaType {
	case mediaTypeCBOR:
		if err := cborDecMode.Unmarshal(body, &doc); err != nil {
			return nil, &DecodeError{Format: "CBOR", Err: err}
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&doc); err != nil {
			return nil, &DecodeError{Format: "JSON", Err: err}
		}
	}
	return doc, nil
}

// Package fallback implements the prioritized fallback client over the
// configured upstream API endpoints, including response normalization and
// per-endpoint failure backoff.
package fallback

// Shape classifies the envelope structure of an upstream response.
// Upstream providers disagree on envelope structure; classifying into one
// of exactly three known shapes keeps that variance out of every caller.
// A new upstream format means adding a case here, not guessing at runtime.
type Shape int

const (
	// ShapeLegacy is a response with no confidence_score key at all.
	// The payload passes through unchanged and confidence defaults to 1.0.
	ShapeLegacy Shape = iota

	// ShapeWrapped is {"confidence_score": ..., "data": {...}}; the
	// logical payload is the data value.
	ShapeWrapped

	// ShapeDirect is {"confidence_score": ..., <fields...>}; the logical
	// payload is the object itself minus the metadata keys.
	ShapeDirect
)

func (s Shape) String() string {
	switch s {
	case ShapeWrapped:
		return "wrapped"
	case ShapeDirect:
		return "direct"
	default:
		return "legacy"
	}
}

const (
	confidenceKey = "confidence_score"
	dataKey       = "data"
)

// metadataKeys are stripped from direct-shape payloads.
var metadataKeys = map[string]struct{}{
	confidenceKey: {},
	"source":      {},
}

// Normalize extracts the logical payload and confidence score from a
// decoded JSON value. It never fails: malformed JSON is rejected by the
// HTTP layer before it gets here, and every well-formed value falls into
// exactly one shape. Normalizing an already-normalized payload (no
// confidence_score key) is the identity.
func Normalize(value any) (payload any, confidence float64, shape Shape) {
	m, ok := value.(map[string]any)
	if !ok {
		return value, 1.0, ShapeLegacy
	}

	raw, ok := m[confidenceKey]
	if !ok {
		return value, 1.0, ShapeLegacy
	}
	confidence = toConfidence(raw)

	if data, ok := m[dataKey]; ok {
		return data, confidence, ShapeWrapped
	}

	stripped := make(map[string]any, len(m))
	for k, v := range m {
		if _, meta := metadataKeys[k]; meta {
			continue
		}
		stripped[k] = v
	}
	return stripped, confidence, ShapeDirect
}

// toConfidence coerces the upstream confidence value. Non-numeric values
// are treated as full confidence rather than failing the response.
func toConfidence(raw any) float64 {
	f, ok := raw.(float64)
	if !ok {
		return 1.0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1.0
	}
	return f
}

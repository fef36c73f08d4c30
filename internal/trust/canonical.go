package trust

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/criticalup/criticalup/internal/errs"
)

// canonicalize renders v as RFC 8785-style canonical JSON: object keys sorted,
// null fields dropped, no insignificant whitespace. Adapted from the
// canonical-JSON helper used for signed payloads elsewhere in the retrieval
// pack; criticaltrust's own signed envelopes need the same determinism
// property (the exact bytes that were signed must be reproducible from the
// decoded struct) so the same technique applies here.
func canonicalize(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "marshal payload", err)
	}

	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "unmarshal payload", err)
	}

	out, err := json.Marshal(stripNulls(generic))
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "re-marshal payload", err)
	}
	return out, nil
}

func stripNulls(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, v := range val {
			if v != nil {
				result[k] = stripNulls(v)
			}
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = stripNulls(item)
		}
		return result
	default:
		return v
	}
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

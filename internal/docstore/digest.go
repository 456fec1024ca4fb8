package docstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Digest computes a stable content digest over the given inputs. Each input
// is serialized to canonical JSON (Go sorts map keys when marshaling) and
// fed to sha256 in order. Used for transition and decision inputs digests.
func Digest(inputs ...any) string {
	h := sha256.New()
	for _, in := range inputs {
		switch v := in.(type) {
		case []byte:
			h.Write(v)
		case string:
			h.Write([]byte(v))
		default:
			data, err := json.Marshal(v)
			if err != nil {
				// Unmarshalable inputs still need a deterministic mark.
				data = []byte(fmt.Sprintf("!%T", v))
			}
			h.Write(data)
		}
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

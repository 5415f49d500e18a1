package guard

import (
	"encoding/json"
)

// EncodeIntent serializes the resume state saved at deny time.
func EncodeIntent(r ResumeState) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeIntent restores a saved resume state. Payloads that do not decode or
// that point off-site are reported as absent.
func DecodeIntent(raw []byte) (ResumeState, bool) {
	if len(raw) == 0 {
		return ResumeState{}, false
	}
	var r ResumeState
	if err := json.Unmarshal(raw, &r); err != nil {
		return ResumeState{}, false
	}
	if !r.From.IsLocal() {
		return ResumeState{}, false
	}
	return r, true
}

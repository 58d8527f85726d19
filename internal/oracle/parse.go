package oracle

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Proposal is the strategist's structured trade suggestion. The zero value
// (Action HOLD) is the safe default when the oracle output is unusable.
type Proposal struct {
	Action     string    `json:"action"`
	TakeProfit flexFloat `json:"tp"`
	StopLoss   flexFloat `json:"sl"`
	Reason     string    `json:"reason"`
}

// Review is the risk reviewer's verdict. Anything that is not an explicit
// APPROVE counts as REJECT (fail-closed).
type Review struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Approved reports whether the reviewer explicitly approved the trade.
func (r Review) Approved() bool {
	return strings.Contains(strings.ToUpper(r.Action), "APPROVE")
}

// flexFloat tolerates models emitting numbers as JSON strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// StripFences removes markdown code-fence markers models wrap JSON in.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// ParseProposal decodes strategist output. Malformed or empty text yields the
// HOLD default and ok=false.
func ParseProposal(raw string) (Proposal, bool) {
	p := Proposal{Action: "HOLD"}
	raw = StripFences(raw)
	if raw == "" {
		return p, false
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Proposal{Action: "HOLD"}, false
	}
	p.Action = strings.ToUpper(strings.TrimSpace(p.Action))
	if p.Action == "" {
		p.Action = "HOLD"
	}
	return p, true
}

// ParseReview decodes reviewer output. Malformed or empty text yields the
// REJECT default and ok=false.
func ParseReview(raw string) (Review, bool) {
	r := Review{Action: "REJECT"}
	raw = StripFences(raw)
	if raw == "" {
		return r, false
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Review{Action: "REJECT"}, false
	}
	r.Action = strings.ToUpper(strings.TrimSpace(r.Action))
	if r.Action == "" {
		r.Action = "REJECT"
	}
	return r, true
}

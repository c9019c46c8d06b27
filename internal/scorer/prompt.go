package scorer

import (
	"encoding/json"
	"fmt"
)

const assessmentSystemPrompt = `You assess whether release listings are updates for a tracked software title.

You receive a JSON object with the tracked title, its currently known version,
and a list of candidate listings. For each listing decide whether it announces
a newer release of the SAME title. Sequels, spin-offs, bundles of other titles,
and reposts of the already-known version are not updates.

Respond with JSON only, in this shape:
{"assessments":[{"index":0,"is_update":true,"confidence":0.93,"reason":"..."}]}

Rules:
- "index" refers to the listing's position in the input array.
- "confidence" is between 0 and 1.
- Include one assessment per listing. Keep "reason" to one short sentence.`

func buildUserPrompt(req Request) (string, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	return string(encoded), nil
}

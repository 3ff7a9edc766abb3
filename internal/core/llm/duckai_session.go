package llm

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DuckAI request headers carrying the session tokens.
const (
	headerVQDHash   = "x-vqd-hash-1"
	headerFESignals = "x-fe-signals"
	headerFEVersion = "x-fe-version"
	headerVQDAccept = "x-vqd-accept"
)

const (
	duckAIOrigin  = "https://duckduckgo.com"
	duckAIReferer = "https://duckduckgo.com/"
	// Stack trace reported in the challenge metadata, matching the web client bundle.
	duckAIChallengeStack    = "Error\nat b (https://duckduckgo.com/dist/wpm.chat.576c5771a56bc23aac8e.js:1:14240)\nat async https://duckduckgo.com/dist/wpm.chat.576c5771a56bc23aac8e.js:1:16463"
	duckAIChallengeDuration = "17"
	duckAISignalsEnd        = 89251
)

// duckAISession is the token set authorizing chat calls. The three tokens are
// always produced together and replaced together.
type duckAISession struct {
	VQDHash   string
	FESignals string
	FEVersion string
}

func (s *duckAISession) valid() bool {
	return s != nil && s.VQDHash != "" && s.FESignals != "" && s.FEVersion != ""
}

type signalEvent struct {
	Name  string `json:"name"`
	Delta int    `json:"delta"`
}

type feSignals struct {
	Start  int64         `json:"start"`
	Events []signalEvent `json:"events"`
	End    int           `json:"end"`
}

// buildFESignals encodes the onboarding telemetry the web client sends.
func buildFESignals(now time.Time) (string, error) {
	payload, err := json.Marshal(feSignals{
		Start: now.UnixMilli(),
		Events: []signalEvent{
			{Name: "onboarding_impression_1", Delta: 35},
			{Name: "onboarding_impression_2", Delta: 20921},
			{Name: "onboarding_finish", Delta: 22022},
			{Name: "startNewChat", Delta: 22659},
		},
		End: duckAISignalsEnd,
	})
	if err != nil {
		return "", fmt.Errorf("encoding fe signals: %w", err)
	}

	return base64.StdEncoding.EncodeToString(payload), nil
}

// solveChallenge turns the base64 challenge from the x-vqd-hash-1 header into
// the signed token: the script is evaluated in a browser page, its client
// hashes are replaced with their SHA-256 digests and metadata is attached.
func solveChallenge(ctx context.Context, evaluator ScriptEvaluator, challenge string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(challenge))
	if err != nil {
		return "", fmt.Errorf("decoding challenge: %w", err)
	}

	// The challenge probes navigator.webdriver, which headless Chrome sets.
	script := strings.ReplaceAll(string(decoded), "webdriver", "wedbriver")

	expr, err := functionBodyExpression(script)
	if err != nil {
		return "", err
	}

	raw, err := evaluator.Evaluate(ctx, expr)
	if err != nil {
		return "", err
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decoding challenge result: %w", err)
	}

	if result == nil {
		return "", fmt.Errorf("decoding challenge result: %w", errChallengeShape)
	}

	hashes, ok := result["client_hashes"].([]any)
	if !ok {
		return "", fmt.Errorf("client_hashes: %w", errChallengeShape)
	}

	digests := make([]string, 0, len(hashes))

	for _, h := range hashes {
		s, ok := h.(string)
		if !ok {
			return "", fmt.Errorf("client hash: %w", errChallengeShape)
		}

		sum := sha256.Sum256([]byte(s))
		digests = append(digests, base64.StdEncoding.EncodeToString(sum[:]))
	}

	result["client_hashes"] = digests

	meta, _ := result["meta"].(map[string]any)
	if meta == nil {
		meta = make(map[string]any)
	}

	meta["origin"] = duckAIOrigin
	meta["stack"] = duckAIChallengeStack
	meta["duration"] = duckAIChallengeDuration
	result["meta"] = meta

	signed, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encoding challenge result: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signed), nil
}

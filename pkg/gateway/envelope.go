package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// KindTerminal is the envelope type of remote command traffic.
const KindTerminal = "terminal"

var errMissingCommand = errors.New("missing command")

// CommandEnvelope is an inbound request to run one command.
type CommandEnvelope struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// ResultEnvelope carries the output of one command back to its sender.
type ResultEnvelope struct {
	Type   string `json:"type"`
	Output string `json:"output"`
}

type header struct {
	Type string `json:"type"`
}

func decodeHeader(data []byte) (string, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if h.Type == "" {
		return "", errors.New("decode envelope: missing type")
	}
	return h.Type, nil
}

func decodeCommand(data []byte) (CommandEnvelope, error) {
	var env CommandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode terminal envelope: %w", err)
	}
	if env.Command == "" {
		return env, errMissingCommand
	}
	return env, nil
}

func terminalResult(output string) ResultEnvelope {
	return ResultEnvelope{Type: KindTerminal, Output: output}
}

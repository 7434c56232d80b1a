package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Engine status ids. Anything at or below StatusIDProcessing is unfinished.
const (
	StatusIDInQueue    = 1
	StatusIDProcessing = 2
	StatusIDAccepted   = 3
	StatusIDError      = 4
)

// ExecutionJob is one entry of a batch sent to the execution engine.
type ExecutionJob struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

// ExecutionToken is the engine's opaque handle for one job. Error is set
// when the engine rejected that entry of the batch.
type ExecutionToken struct {
	Token string          `json:"token"`
	Error json.RawMessage `json:"error,omitempty"`
}

type ExecutionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

func (s ExecutionStatus) Finished() bool {
	return s.ID > StatusIDProcessing
}

// ExecutionResult is the polled state of one token.
type ExecutionResult struct {
	Token         string          `json:"token"`
	Status        ExecutionStatus `json:"status"`
	Stdout        string          `json:"stdout"`
	Stderr        string          `json:"stderr"`
	CompileOutput string          `json:"compile_output"`
	Time          Seconds         `json:"time"`
	Memory        int64           `json:"memory"` // KB
}

// Seconds decodes the engine's "time" field, which arrives as a quoted
// decimal ("0.012"), a bare number, or null.
type Seconds float64

func (s *Seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if str == "" {
			*s = 0
			return nil
		}
		data = []byte(str)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid time value %q: %w", data, err)
	}
	*s = Seconds(v)
	return nil
}

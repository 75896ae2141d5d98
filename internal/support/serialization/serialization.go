// Package serialization provides JSON helpers for the structures the run
// repository persists, such as failure lists.
package serialization

import (
	"encoding/json"

	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
)

const module = "serialization"

// MarshalFailures serializes a slice of failure messages into a JSON byte slice.
func MarshalFailures(failures []string) ([]byte, error) {
	if failures == nil {
		return []byte("[]"), nil
	}

	data, err := json.Marshal(failures)
	if err != nil {
		logger.Errorf("Failed to serialize failures: %v", err)
		return nil, exception.NewAppError(module, "Failed to serialize failures", err, false, false)
	}
	return data, nil
}

// UnmarshalFailures deserializes a JSON byte slice into a slice of failure messages.
func UnmarshalFailures(data []byte, msgs *[]string) error {
	if len(data) == 0 || string(data) == "null" {
		*msgs = []string{}
		return nil
	}

	err := json.Unmarshal(data, msgs)
	if err != nil {
		logger.Errorf("Failed to deserialize failures: %v", err)
		return exception.NewAppError(module, "Failed to deserialize failures", err, false, false)
	}
	return nil
}

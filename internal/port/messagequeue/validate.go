package messagequeue

import (
	"encoding/json"
	"fmt"
)

// Validate checks that data is a JSON object before it is published on or
// consumed from subject.
func Validate(subject string, data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid JSON object on subject %s: %w", subject, err)
	}
	return nil
}

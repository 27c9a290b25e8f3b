package sqlite

import (
	"encoding/json"
	"fmt"
)

// formatStages serializes a stage list as a JSON array for storage.
func formatStages(stages []string) (string, error) {
	b, err := json.Marshal(stages)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stages: %w", err)
	}
	return string(b), nil
}

// parseStages deserializes a stored JSON stage array.
func parseStages(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var stages []string
	if err := json.Unmarshal([]byte(raw), &stages); err != nil {
		return nil, fmt.Errorf("failed to parse stages: %w", err)
	}
	return stages, nil
}

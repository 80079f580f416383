package infra

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadAliases reads the player alias table from a JSON file mapping raw
// handles to display names. An empty path means no aliases are configured.
func LoadAliases(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}

	aliases := make(map[string]string)
	if err := json.Unmarshal(raw, &aliases); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}
	return aliases, nil
}

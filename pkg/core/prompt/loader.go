package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFromDirectory loads prompt overrides from JSON files. Every *.json file
// under dir (recursively) holds one Template; IDs matching built-ins replace
// them.
func LoadFromDirectory(dir string) error {
	registry := Get()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("prompt directory not found: %s", dir)
	}

	loaded := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read prompt file %s: %w", path, err)
		}

		var t Template
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse prompt file %s: %w", path, err)
		}
		if err := registry.Register(&t); err != nil {
			return err
		}
		loaded++
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("[prompt.Loader] Loaded %d prompt overrides from %s\n", loaded, dir)
	return nil
}

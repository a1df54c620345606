package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func isJSONFile(filepath string) bool {
	return len(filepath) >= 5 && filepath[len(filepath)-5:] == ".json"
}

func isYAMLFile(filepath string) bool {
	return len(filepath) >= 5 && filepath[len(filepath)-5:] == ".yaml" ||
		len(filepath) >= 4 && filepath[len(filepath)-4:] == ".yml"
}

func loadFromJSON(configFilepath string, dst any) error {
	file, err := os.Open(configFilepath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(dst)
}

func loadFromYAML(configFilepath string, dst any) error {
	file, err := os.Open(configFilepath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return yaml.NewDecoder(file).Decode(dst)
}

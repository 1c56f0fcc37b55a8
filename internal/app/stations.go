package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Station is a named stream preset
type Station struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`

	// Optional basic auth for private relays
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// StationList holds named stream presets so users can play by name instead
// of pasting URLs
type StationList struct {
	Stations []Station `yaml:"stations" json:"stations"`
}

// Lookup finds a station by name, case-insensitively
func (l *StationList) Lookup(name string) (*Station, bool) {
	for i := range l.Stations {
		if strings.EqualFold(l.Stations[i].Name, name) {
			return &l.Stations[i], true
		}
	}
	return nil, false
}

// LoadStations loads station presets from a YAML or JSON file
func LoadStations(filePath string) (*StationList, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("station file does not exist: %s", filePath)
	}

	ext := filepath.Ext(filePath)
	switch ext {
	case ".yaml", ".yml":
		return loadStationsFromYAML(filePath)
	case ".json":
		return loadStationsFromJSON(filePath)
	default:
		// Try YAML first, then JSON
		if list, err := loadStationsFromYAML(filePath); err == nil {
			return list, nil
		}
		return loadStationsFromJSON(filePath)
	}
}

func loadStationsFromYAML(filePath string) (*StationList, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open YAML station file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML station file: %w", err)
	}

	var list StationList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse YAML station file: %w", err)
	}

	if err := validateStations(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

func loadStationsFromJSON(filePath string) (*StationList, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON station file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON station file: %w", err)
	}

	var list StationList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse JSON station file: %w", err)
	}

	if err := validateStations(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

func validateStations(list *StationList) error {
	seen := make(map[string]bool, len(list.Stations))
	for _, station := range list.Stations {
		if station.Name == "" {
			return fmt.Errorf("station with URL %q has no name", station.URL)
		}
		if station.URL == "" {
			return fmt.Errorf("station %q has no URL", station.Name)
		}
		key := strings.ToLower(station.Name)
		if seen[key] {
			return fmt.Errorf("duplicate station name %q", station.Name)
		}
		seen[key] = true
	}
	return nil
}

package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultSourceTimeout = 30
	defaultSourceMethod  = "GET"
)

// LoadSource reads a source description from a YAML file. The source name is
// derived from the file name.
func LoadSource(path string) (*Source, error) {
	source, err := parseSource(path)
	if err != nil {
		return nil, err
	}

	fileName := filepath.Base(path)
	source.Name = strings.TrimSuffix(fileName, filepath.Ext(fileName))

	if err := validateSource(source); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", path, err)
	}

	slog.Debug("Source loaded", "source", source.Name, "url", source.URL, "format", source.Format, "method", source.Method)

	return source, nil
}

func parseSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if source.Method == "" {
		source.Method = defaultSourceMethod
	}
	source.Method = strings.ToUpper(source.Method)
	if source.Format == "" {
		source.Format = FormatChat
	}
	if source.Timeout == 0 {
		source.Timeout = defaultSourceTimeout
	}

	return &source, nil
}

func validateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("source is nil")
	}

	if source.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if u, err := url.Parse(source.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source URL must be absolute: %s", source.URL)
	}

	if source.Method != "GET" && source.Method != "POST" {
		return fmt.Errorf("unsupported method: %s", source.Method)
	}

	if source.Format != FormatChat && source.Format != FormatFeed {
		return fmt.Errorf("unsupported format: %s", source.Format)
	}

	if source.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	validFields := map[string]bool{
		"name": true,
		"text": true,
	}

	for i, filter := range source.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var durationKeys = map[string]struct{}{
	"attempt_timeout": {},
	"initial_backoff": {},
	"max_backoff":     {},
	"shutdown_grace":  {},
	"poll_interval":   {},
	"idempotency_ttl": {},
	"tenant_ttl":      {},
	"code_timeout":    {},
}

// YAMLConfigLoader reads a raw config map from a YAML file. Duration values
// are written as Go duration strings ("10s", "250ms").
type YAMLConfigLoader struct {
	Path     string
	Optional bool
}

func NewYAMLConfigLoader(path string) *YAMLConfigLoader {
	return &YAMLConfigLoader{Path: path}
}

func (l *YAMLConfigLoader) LoadRaw(_ context.Context) (map[string]any, error) {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if l.Optional && os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config %s: %w", l.Path, err)
	}
	return ParseYAMLConfig(data)
}

func ParseYAMLConfig(data []byte) (map[string]any, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("core: parse yaml config: %w", err)
	}
	return normalizeDurations(raw), nil
}

func normalizeDurations(raw map[string]any) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		switch typed := value.(type) {
		case map[string]any:
			out[key] = normalizeDurations(typed)
		case string:
			if _, ok := durationKeys[key]; ok {
				if parsed, err := time.ParseDuration(strings.TrimSpace(typed)); err == nil {
					out[key] = parsed
					continue
				}
			}
			out[key] = typed
		default:
			out[key] = value
		}
	}
	return out
}

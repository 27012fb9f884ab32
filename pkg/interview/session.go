package interview

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSession is wrapped by every SessionConfig validation failure.
var ErrInvalidSession = errors.New("invalid session config")

func invalidSession(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSession, fmt.Sprintf(format, args...))
}

// Validate checks that the config can be run.
func (c *SessionConfig) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return invalidSession("session id is required")
	}
	return c.validateBody()
}

// validateBody checks everything except the session id.
func (c *SessionConfig) validateBody() error {
	if len(c.Phases) == 0 {
		return invalidSession("no phases declared")
	}
	if lvl := c.Candidate.ExperienceLevel; lvl != "" && !lvl.Valid() {
		return invalidSession("unknown experience level %q", lvl)
	}

	seen := make(map[string]bool, len(c.Phases))
	for i := range c.Phases {
		p := &c.Phases[i]
		switch {
		case strings.TrimSpace(p.ID) == "":
			return invalidSession("phase %d has no id", i)
		case seen[p.ID]:
			return invalidSession("duplicate phase id %q", p.ID)
		case !p.AgentType.Valid():
			return invalidSession("phase %s: unknown agent type %q", p.ID, p.AgentType)
		case p.QuestionCount <= 0:
			return invalidSession("phase %s: question count must be positive, got %d", p.ID, p.QuestionCount)
		}
		if sc := p.SkipConditions; sc != nil && sc.MinExperienceLevel != "" && !sc.MinExperienceLevel.Valid() {
			return invalidSession("phase %s: unknown minimum experience level %q", p.ID, sc.MinExperienceLevel)
		}
		seen[p.ID] = true
	}
	return nil
}

// ParseSessionYAML decodes and validates a session definition. The session id
// may be left empty for the caller to assign.
func ParseSessionYAML(data []byte) (SessionConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return SessionConfig{}, fmt.Errorf("session definition is empty")
	}
	var cfg SessionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("failed to decode session definition: %w", err)
	}
	for i := range cfg.Phases {
		if cfg.Phases[i].Name == "" {
			cfg.Phases[i].Name = cfg.Phases[i].ID
		}
	}
	if err := cfg.validateBody(); err != nil {
		return SessionConfig{}, err
	}
	return cfg, nil
}

// LoadSessionFile reads a YAML session definition from disk.
func LoadSessionFile(path string) (SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("failed to read session definition %s: %w", path, err)
	}
	cfg, err := ParseSessionYAML(data)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

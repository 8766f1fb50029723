package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"ward/internal/ports"
)

// ruleFile is the on-disk shape of persisted rules.
type ruleFile struct {
	Rules []ports.PolicyRule `yaml:"rules"`
}

// RuleStore persists always-allow rules to a yaml file.
type RuleStore struct {
	mu   sync.Mutex
	path string
}

// NewRuleStore creates a store backed by path. The file is created lazily.
func NewRuleStore(path string) *RuleStore {
	return &RuleStore{path: path}
}

// Load reads all persisted rules. A missing file is an empty rule set.
func (s *RuleStore) Load() ([]ports.PolicyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	for i := range file.Rules {
		file.Rules[i].Persisted = true
	}
	return file.Rules, nil
}

// Append adds rules to the persisted set. Writes go through a temp file and
// rename so a crash cannot corrupt the rule file.
func (s *RuleStore) Append(rules []ports.PolicyRule) error {
	if len(rules) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var file ruleFile
	if data, err := os.ReadFile(s.path); err == nil {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse %s: %w", s.path, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	for _, rule := range rules {
		rule.Persisted = true
		file.Rules = append(file.Rules, rule)
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

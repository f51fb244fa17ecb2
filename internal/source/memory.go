package source

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

// Memory is an in-memory Source backed by a selector to values map. It stands
// in for a live page in tests and offline runs. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	values  map[string][]string
	errs    map[string]error
	current string
}

// NewMemory creates an empty source.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string][]string),
		errs:   make(map[string]error),
	}
}

// Set makes selector resolve to values.
func (m *Memory) Set(selector string, values ...string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[selector] = append([]string(nil), values...)
	return m
}

// Remove makes selector unresolvable.
func (m *Memory) Remove(selector string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, selector)
}

// SetError makes lookups of selector fail with err. A nil err clears it.
func (m *Memory) SetError(selector string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, selector)
		return
	}
	m.errs[selector] = err
}

// SetCurrent sets the value returned by CurrentValue.
func (m *Memory) SetCurrent(v string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = v
	return m
}

// Find returns the first value of selector or an absent sample.
func (m *Memory) Find(_ context.Context, selector string, _ time.Duration) (sampling.Sample[string], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[selector]; err != nil {
		return sampling.Sample[string]{}, sourceErr("find", selector, err)
	}
	vs := m.values[selector]
	if len(vs) == 0 {
		return sampling.Absent[string](), nil
	}
	return sampling.Of(vs[0]), nil
}

// FindAll returns every value of selector.
func (m *Memory) FindAll(_ context.Context, selector string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[selector]; err != nil {
		return nil, sourceErr("find all", selector, err)
	}
	return append([]string{}, m.values[selector]...), nil
}

// CurrentValue returns the configured current value.
func (m *Memory) CurrentValue(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[""]; err != nil {
		return "", sourceErr("current", "", err)
	}
	return m.current, nil
}

// Fixture is the YAML form of a Memory source:
//
//	current: https://example.com/conference
//	values:
//	  h1: Conference 2024
//	  nav a: [Home, Program, Venue]
type Fixture struct {
	Current string               `yaml:"current"`
	Values  map[string]yamlValues `yaml:"values"`
}

// yamlValues accepts either a scalar or a sequence.
type yamlValues []string

func (v *yamlValues) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*v = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*v = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// LoadFixture reads a YAML fixture into a new Memory source.
func LoadFixture(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture into a new Memory source.
func ParseFixture(data []byte) (*Memory, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	m := NewMemory().SetCurrent(fx.Current)
	for sel, vs := range fx.Values {
		m.Set(sel, vs...)
	}
	return m, nil
}

package harness

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/sampling"
)

//go:embed schema.cue
var scenarioSchema string

// ErrInvalidScenario is wrapped by every scenario load failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Check kinds.
const (
	KindEquals   = "equals"
	KindContains = "contains"
	KindPattern  = "pattern"
	KindInt      = "int"
	KindFloat    = "float"
	KindStable   = "stable"
)

// Declared check outcomes.
const (
	ExpectPass = "pass"
	ExpectFail = "fail"
)

// Scenario is a named set of checks run against one or more devices.
type Scenario struct {
	// Name identifies the scenario in results and golden files.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	// Test is the test identity that feeds the class and method
	// differences. Optional.
	Test *Test `yaml:"test,omitempty"`

	// Devices lists catalog device names. Empty means the runner decides.
	Devices []string `yaml:"devices,omitempty"`

	Checks []Check `yaml:"checks"`
}

// Test is a qualified test class and method name.
type Test struct {
	Class  string `yaml:"class"`
	Method string `yaml:"method"`
}

// Check is one verification in a scenario.
type Check struct {
	Name string `yaml:"name"`

	// Kind selects the comparison. See the Kind constants.
	Kind string `yaml:"kind"`

	// Sampler is a registered sampler kind, Args its arguments.
	Sampler string        `yaml:"sampler"`
	Args    sampling.Args `yaml:"args,omitempty"`

	// Differences are extra fixed naming dimensions, appended after the
	// session differences and before the check name.
	Differences []string `yaml:"differences,omitempty"`

	// Expected overrides the store lookup. Absent declares that no value is
	// expected.
	Expected *string `yaml:"expected,omitempty"`
	Absent   bool    `yaml:"absent,omitempty"`

	// Tolerance applies to float checks.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Timeout and Interval bound the polling of stable checks.
	Timeout  string `yaml:"timeout,omitempty"`
	Interval string `yaml:"interval,omitempty"`

	// Expect is the declared outcome, pass (default) or fail.
	Expect string `yaml:"expect,omitempty"`
}

// ExpectsPass reports whether the check is declared to pass.
func (c Check) ExpectsPass() bool {
	return c.Expect == "" || c.Expect == ExpectPass
}

// pollDurations parses Timeout and Interval. Zero values fall back to the
// poll defaults.
func (c Check) pollDurations() (time.Duration, time.Duration, error) {
	var timeout, interval time.Duration
	var err error
	if c.Timeout != "" {
		if timeout, err = time.ParseDuration(c.Timeout); err != nil {
			return 0, 0, fmt.Errorf("check %q: timeout: %w", c.Name, err)
		}
	}
	if c.Interval != "" {
		if interval, err = time.ParseDuration(c.Interval); err != nil {
			return 0, 0, fmt.Errorf("check %q: interval: %w", c.Name, err)
		}
	}
	return timeout, interval, nil
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario validates data against the scenario schema and decodes it.
// filename is used in error messages.
func ParseScenario(filename string, data []byte) (*Scenario, error) {
	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScenario, filename, err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScenario, filename, err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScenario, filename, err)
	}
	return &scenario, nil
}

func validateSchema(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return errors.New("empty document")
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(scenarioSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(ctx.Encode(doc))
	return value.Validate(cue.Concrete(true))
}

// validateScenario checks the rules the schema cannot express.
func validateScenario(s *Scenario) error {
	seen := make(map[string]bool, len(s.Checks))
	for i, c := range s.Checks {
		if seen[c.Name] {
			return fmt.Errorf("checks[%d]: duplicate check name %q", i, c.Name)
		}
		seen[c.Name] = true

		if c.Absent && c.Expected != nil {
			return fmt.Errorf("checks[%d]: expected and absent are mutually exclusive", i)
		}
		if c.Kind == KindStable && (c.Expected != nil || c.Absent) {
			return fmt.Errorf("checks[%d]: stable checks take no expected value", i)
		}
		if c.Kind != KindFloat && c.Tolerance != 0 {
			return fmt.Errorf("checks[%d]: tolerance only applies to float checks", i)
		}
		if _, _, err := c.pollDurations(); err != nil {
			return fmt.Errorf("checks[%d]: %w", i, err)
		}
	}
	return nil
}

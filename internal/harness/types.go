package harness

import (
	"fmt"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/verification"
)

// CheckResult is the outcome of one check on one device.
type CheckResult struct {
	verification.Result

	// Kind is the check kind from the scenario.
	Kind string `json:"kind"`

	// Expect is the declared outcome, pass or fail.
	Expect string `json:"expect"`

	// Attempts is the number of cycles a polled check ran.
	Attempts int `json:"attempts,omitempty"`
}

// AsDeclared reports whether the check ended the way the scenario declared.
func (c CheckResult) AsDeclared() bool {
	return c.Passed == (c.Expect == ExpectPass)
}

// Result is the outcome of a scenario on one device.
type Result struct {
	Scenario string `json:"scenario"`
	Device   string `json:"device,omitempty"`

	// Pass is true when every check ended as declared and no check failed
	// to build.
	Pass bool `json:"pass"`

	Checks []CheckResult `json:"checks"`

	// Errors holds build errors and outcome mismatches.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario, device string) *Result {
	return &Result{
		Scenario: scenario,
		Device:   device,
		Pass:     true,
		Checks:   []CheckResult{},
		Errors:   []string{},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCheck appends a check outcome. A check that did not end as declared
// fails the result.
func (r *Result) AddCheck(c CheckResult) {
	r.Checks = append(r.Checks, c)
	if !c.AsDeclared() {
		r.AddError(fmt.Sprintf("%s: declared %s, got %s: %s", c.Name, c.Expect, c.State, c.Message))
	}
}

// Passed returns the number of checks whose cycle passed.
func (r *Result) Passed() int {
	n := 0
	for _, c := range r.Checks {
		if c.Passed {
			n++
		}
	}
	return n
}

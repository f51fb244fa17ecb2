// Package harness runs verification scenarios described in YAML.
//
// # Scenario Format
//
//	name: conference_page
//	description: "Headline and navigation of the conference page"
//	test:
//	  class: conference.PageTest
//	  method: verifyHeadline
//	devices: [desktop, phone]
//	checks:
//	  - name: headline
//	    kind: equals
//	    sampler: text
//	    args: { selector: "h1" }
//	  - name: navigation
//	    kind: int
//	    sampler: count
//	    args: { selector: "nav a" }
//	    expected: "3"
//	  - name: banner
//	    kind: stable
//	    sampler: text
//	    args: { selector: ".banner" }
//	    timeout: 2s
//	    interval: 100ms
//
// Scenarios are validated against an embedded CUE schema before they are
// decoded, so typos and unknown kinds are rejected with a position.
//
// # Check Kinds
//
//   - equals, contains, pattern: string comparison against the expected value
//   - int: integer equality, the sampled text is parsed
//   - float: numeric comparison within tolerance
//   - stable: passes once two consecutive samples agree, polled until timeout
//
// Expected values come from the runner's store unless the check sets
// expected (or absent: true) inline. Every check declares whether it should
// pass or fail via expect, defaulting to pass; a scenario passes when every
// check ends the way it declared.
//
// # Devices
//
// Each device gets its own session and source. RunDevices runs devices in
// parallel and returns results in device order, so output is deterministic
// and can be compared against golden files.
package harness

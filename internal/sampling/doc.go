// Package sampling provides the value-acquisition substrate used by verifications.
//
// A Sampler produces a value of type T from a live, possibly slow and flaky
// collaborator (a browser element, a network capture, a log stream). Samplers
// compose by decoration rather than inheritance:
//
//   - Func adapts a plain function into a Sampler.
//   - Caching wraps a Sampler with a cache slot and the null-value policy:
//     recoverable acquisition failures degrade to the policy result instead of
//     propagating, while configuration errors still surface.
//   - Map, Filter, Count, Regex, RegexGroups and RegexAll transform the output
//     of an upstream Sampler, forming pipelines.
//
// # Absence
//
// "No value found" is not an error. Samplers return a Sample[T] whose Present
// field distinguishes a value from absence. Errors are reserved for failures:
//
//   - *SourceError (or anything wrapping ErrUnavailable / ErrAbsent) is a
//     recoverable acquisition failure. Caching degrades it.
//   - *ConfigError is a programming or configuration error. It is never degraded.
//
// # Registry
//
// Registry maps a sampler kind identifier to a typed constructor so scenarios
// can build samplers from data without runtime type introspection:
//
//	reg := sampling.NewRegistry[string]()
//	reg.Register("text", func(args sampling.Args) (sampling.Sampler[string], error) {
//	    sel, err := args.String("selector")
//	    ...
//	})
//	s, err := reg.New("text", sampling.Args{"selector": "h1"})
package sampling

// Package convert turns Kubernetes Ingress resources into Gateway API route
// resources.
//
// # Overview
//
// The Builder type converts a single Ingress plus its resolved configuration
// into an ordered set of GeneratedRoute values. It handles:
//
//   - Protocol selection: rules with HTTP paths become HTTPRoutes; rules
//     without HTTP paths become a TCPRoute from the default backend when the
//     experimental channel is enabled, and are skipped with a warning
//     otherwise.
//   - Path splitting: with split-paths disabled, paths are packed into as few
//     HTTPRoutes as the 16-rule cap allows, preserving order; with it enabled,
//     every path gets its own HTTPRoute.
//   - Header and query matchers from weighted annotations, multiplied into
//     the per-path matches via cartesian product.
//   - Named service ports, resolved through a ServicePortResolver.
//
// # Determinism
//
// Conversion is pure and deterministic: generated names are a function of the
// Ingress name, the rule's host, and the split index, so converting an
// unchanged Ingress twice yields identical route sets. The reconciliation diff
// relies on this.
//
// # Ownership
//
// Every generated route carries source labels identifying the Ingress it came
// from; LinkToSource additionally attaches an owner reference when configured,
// enabling cascade deletion by the cluster garbage collector.
package convert

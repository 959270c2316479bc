// Package config resolves the effective per-Ingress configuration from
// operator-wide defaults and per-resource annotation overrides.
package config

import (
	"strings"
)

// Defaults holds the operator-wide configuration supplied via CLI flags or
// environment variables. A single value is shared by all Ingresses and can be
// overridden per resource through annotations.
type Defaults struct {
	// ExperimentalChannel enables generation of experimental-channel route
	// kinds (TCPRoute) for rules that carry no HTTP paths.
	ExperimentalChannel bool

	// LinkToIngress attaches owner references from generated routes back to
	// their source Ingress so the cluster garbage collector cascades deletes.
	LinkToIngress bool

	// DefaultGatewayName is the Gateway generated routes attach to unless an
	// annotation overrides it.
	DefaultGatewayName string

	// DefaultGatewayNamespace is the namespace of that Gateway.
	DefaultGatewayNamespace string

	// SkipByDefault skips every Ingress unless it opts in with the
	// translate annotation.
	SkipByDefault bool

	// SplitPaths emits one HTTPRoute per path by default.
	SplitPaths bool
}

// Resolved is the effective configuration for one Ingress after merging
// annotation overrides over the operator defaults. It is computed fresh on
// every reconciliation pass and never cached; annotations may change between
// passes.
type Resolved struct {
	ExperimentalChannel bool
	LinkToIngress       bool
	SkipByDefault       bool
	SplitPaths          bool

	// Translate is the resolved gate decision. Its built-in default is the
	// inverse of SkipByDefault, so an explicit annotation is required to opt
	// in under skip-by-default and to opt out otherwise.
	Translate bool

	GatewayName      string
	GatewayNamespace string

	// SectionName is nil when no listener section is pinned.
	SectionName *string
}

// WarnFunc receives non-fatal resolution problems, typically a malformed
// annotation value that fell back to the operator default. Resolution itself
// never fails.
type WarnFunc func(annotation, value, reason string)

// Resolve merges annotation overrides over the operator defaults into the
// effective configuration for one Ingress. Per field, an annotation value that
// parses to the field's type wins over the default; anything else counts as
// absent and is reported through warn. The function is total and pure.
func Resolve(defaults Defaults, annotations map[string]string, warn WarnFunc) Resolved {
	resolved := Resolved{
		ExperimentalChannel: defaults.ExperimentalChannel,
		LinkToIngress:       defaults.LinkToIngress,
		SkipByDefault:       defaults.SkipByDefault,
		SplitPaths:          resolveBool(annotations, AnnotationSplitPaths, defaults.SplitPaths, warn),
		Translate:           resolveBool(annotations, AnnotationTranslate, !defaults.SkipByDefault, warn),
		GatewayName:         resolveString(annotations, AnnotationGatewayName, defaults.DefaultGatewayName),
		GatewayNamespace:    resolveString(annotations, AnnotationGatewayNamespace, defaults.DefaultGatewayNamespace),
	}

	if section, ok := annotations[AnnotationSectionName]; ok && section != "" {
		resolved.SectionName = &section
	}

	return resolved
}

// ShouldTranslate reports whether the Ingress participates in conversion at
// all. Under skip-by-default only an explicit translate=true opts in; otherwise
// only an explicit translate=false opts out.
func (r Resolved) ShouldTranslate() bool {
	return r.Translate
}

func resolveBool(annotations map[string]string, key string, fallback bool, warn WarnFunc) bool {
	raw, ok := annotations[key]
	if !ok {
		return fallback
	}

	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}

	if warn != nil {
		warn(key, raw, "not a boolean, using default")
	}

	return fallback
}

func resolveString(annotations map[string]string, key, fallback string) string {
	if raw, ok := annotations[key]; ok && raw != "" {
		return raw
	}

	return fallback
}

package config

// annotationDomain is the prefix shared by every annotation this controller
// recognizes on Ingress resources.
const annotationDomain = "i2g.dev"

// Per-Ingress annotation keys. Values override the operator-wide defaults for
// the single Ingress carrying them.
const (
	// AnnotationTranslate opts an Ingress in or out of translation,
	// overriding the skip-by-default policy in either direction.
	AnnotationTranslate = annotationDomain + "/translate"

	// AnnotationSplitPaths emits one HTTPRoute per path instead of packing
	// paths into as few route objects as the match-rule cap allows.
	AnnotationSplitPaths = annotationDomain + "/split-paths"

	// AnnotationGatewayName selects the Gateway generated routes attach to.
	AnnotationGatewayName = annotationDomain + "/gateway-name"

	// AnnotationGatewayNamespace selects the namespace of that Gateway.
	AnnotationGatewayNamespace = annotationDomain + "/gateway-namespace"

	// AnnotationSectionName pins generated routes to a specific listener
	// section of the target Gateway.
	AnnotationSectionName = annotationDomain + "/section-name"
)

// Weighted matcher annotation prefixes. The suffix after the prefix is a
// numeric weight used for ordering, e.g. "i2g.dev/header-match/10".
const (
	AnnotationHeaderMatchPrefix = annotationDomain + "/header-match/"
	AnnotationQueryMatchPrefix  = annotationDomain + "/query-match/"
)

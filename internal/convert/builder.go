package convert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	gatewayv1alpha2 "sigs.k8s.io/gateway-api/apis/v1alpha2"

	"github.com/i2gdev/ingress-to-gateway-controller/internal/config"
	"github.com/i2gdev/ingress-to-gateway-controller/internal/metrics"
)

// MaxMatchesPerRoute is the hard cap on match rules per generated HTTPRoute.
// Rules with more expanded matches are split across multiple route objects.
const MaxMatchesPerRoute = 16

const kindGateway = "Gateway"

// Builder converts one Ingress plus its resolved configuration into Gateway
// API route resources. Conversion is deterministic; aside from named-port
// lookups through the resolver it performs no cluster access.
type Builder struct {
	// Resolver resolves named backend ports to numeric ports.
	Resolver ServicePortResolver

	// Metrics records conversion durations and warnings.
	Metrics metrics.Collector
}

// NewBuilder creates a Builder with the given port resolver and metrics
// collector.
func NewBuilder(resolver ServicePortResolver, collector metrics.Collector) *Builder {
	return &Builder{
		Resolver: resolver,
		Metrics:  collector,
	}
}

// Convert produces the ordered set of routes an Ingress should generate.
//
// Rules with HTTP paths become HTTPRoutes, grouped per host (several rules
// naming the same host merge into one route set) and packed under the
// 16-match cap or split one-per-path according to the resolved configuration.
// Rules without HTTP paths become a TCPRoute from the default backend when
// the experimental channel is enabled and are skipped with a warning
// otherwise.
//
// Returns a MalformedIngressError, and no routes, when a rule's paths
// reference no usable backend, a path carries an unrecognized path type, or a
// TLS entry names a host absent from every rule.
//
//nolint:gocognit // rule classification is one coherent decision tree
func (b *Builder) Convert(
	ctx context.Context,
	ing *networkingv1.Ingress,
	resolved config.Resolved,
) ([]GeneratedRoute, error) {
	startTime := time.Now()
	logger := slog.Default().With("ingress", ing.Namespace+"/"+ing.Name)

	combos := MatchCombinations(
		MatchersFromAnnotations(ing.Annotations, config.AnnotationHeaderMatchPrefix),
		MatchersFromAnnotations(ing.Annotations, config.AnnotationQueryMatchPrefix),
	)

	tlsByHost := tlsSecretsByHost(ing)
	reasons := validateTLSHosts(ing)

	// Entries accumulate per host so that several rules naming the same host
	// pack into one route set instead of generating colliding names.
	entriesByHost := make(map[string][]gatewayv1.HTTPRouteRule)
	tcpHosts := make(map[string]bool)

	var (
		hostOrder []string
		routes    []GeneratedRoute
	)

	for _, rule := range ing.Spec.Rules {
		if rule.Host == "" {
			logger.Warn("skipping rule without host")
			b.warn(ctx, "rule_without_host")

			continue
		}

		if rule.HTTP == nil || len(rule.HTTP.Paths) == 0 {
			if tcpHosts[rule.Host] {
				continue
			}

			if route, ok := b.buildTCPRoute(ctx, logger, ing, resolved, rule.Host); ok {
				tcpHosts[rule.Host] = true
				routes = append(routes, route)
			}

			continue
		}

		entries, ruleReasons := b.expandRule(ctx, logger, ing, rule, combos)
		if len(ruleReasons) > 0 {
			reasons = append(reasons, ruleReasons...)

			continue
		}

		if len(entries) == 0 {
			reasons = append(reasons, fmt.Sprintf("rule for host %q references no usable backend", rule.Host))

			continue
		}

		if _, seen := entriesByHost[rule.Host]; !seen {
			hostOrder = append(hostOrder, rule.Host)
		}

		entriesByHost[rule.Host] = append(entriesByHost[rule.Host], entries...)
	}

	if len(reasons) > 0 {
		return nil, &MalformedIngressError{
			Ingress: types.NamespacedName{Namespace: ing.Namespace, Name: ing.Name},
			Reasons: reasons,
		}
	}

	for _, host := range hostOrder {
		routes = append(routes, b.packEntries(ing, resolved, host, entriesByHost[host], tlsByHost[host])...)
	}

	if b.Metrics != nil {
		b.Metrics.RecordConversionDuration(ctx, time.Since(startTime))
	}

	return routes, nil
}

// expandRule flattens a rule's path list into single-match HTTPRouteRules,
// one per (path, matcher combination), preserving path order. Paths without a
// usable backend are skipped with a warning; an unrecognized path type is a
// malformed-ingress reason.
func (b *Builder) expandRule(
	ctx context.Context,
	logger *slog.Logger,
	ing *networkingv1.Ingress,
	rule networkingv1.IngressRule,
	combos []MatchCombination,
) (entries []gatewayv1.HTTPRouteRule, reasons []string) {
	for _, path := range rule.HTTP.Paths {
		svc := path.Backend.Service
		if svc == nil {
			logger.Warn("skipping backend without service", "host", rule.Host, "path", path.Path)
			b.warn(ctx, "backend_without_service")

			continue
		}

		port, err := b.Resolver.ResolvePort(ctx, ing.Namespace, svc.Name, svc.Port)
		if err != nil {
			logger.Warn("skipping backend with unresolvable port",
				"host", rule.Host,
				"service", svc.Name,
				"error", err,
			)
			b.warn(ctx, "unresolvable_port")

			continue
		}

		matchType, ok := pathMatchType(path.PathType)
		if !ok {
			reasons = append(reasons, fmt.Sprintf("unknown path type %q for host %q", *path.PathType, rule.Host))

			continue
		}

		value := path.Path
		if value == "" {
			value = "/"
		}

		backendRef := gatewayv1.HTTPBackendRef{
			BackendRef: gatewayv1.BackendRef{
				BackendObjectReference: gatewayv1.BackendObjectReference{
					Name: gatewayv1.ObjectName(svc.Name),
					Port: ptr.To(gatewayv1.PortNumber(port)),
				},
			},
		}

		for _, combo := range combos {
			entries = append(entries, gatewayv1.HTTPRouteRule{
				Matches: []gatewayv1.HTTPRouteMatch{
					{
						Path: &gatewayv1.HTTPPathMatch{
							Type:  ptr.To(matchType),
							Value: ptr.To(value),
						},
						Headers:     headerMatches(combo.Headers),
						QueryParams: queryMatches(combo.Queries),
					},
				},
				BackendRefs: []gatewayv1.HTTPBackendRef{backendRef},
			})
		}
	}

	return entries, reasons
}

// packEntries distributes the expanded rules of one host over HTTPRoute
// objects. Split mode emits one route per entry; otherwise entries pack into
// chunks of at most MaxMatchesPerRoute, preserving order, so the union of
// matches across routes always equals the expansion exactly.
func (b *Builder) packEntries(
	ing *networkingv1.Ingress,
	resolved config.Resolved,
	host string,
	entries []gatewayv1.HTTPRouteRule,
	tlsSecret string,
) []GeneratedRoute {
	base := routeBaseName(ing.Name, host)

	if resolved.SplitPaths {
		routes := make([]GeneratedRoute, 0, len(entries))

		for i := range entries {
			routes = append(routes, newHTTPRoute(
				ing, resolved, host, splitRouteName(base, i), entries[i:i+1], tlsSecret,
			))
		}

		return routes
	}

	var routes []GeneratedRoute

	for chunk := 0; chunk*MaxMatchesPerRoute < len(entries); chunk++ {
		end := min((chunk+1)*MaxMatchesPerRoute, len(entries))

		routes = append(routes, newHTTPRoute(
			ing, resolved, host, httpRouteName(base, chunk), entries[chunk*MaxMatchesPerRoute:end], tlsSecret,
		))
	}

	return routes
}

//nolint:funcorder // private helpers grouped after the conversion flow
func (b *Builder) buildTCPRoute(
	ctx context.Context,
	logger *slog.Logger,
	ing *networkingv1.Ingress,
	resolved config.Resolved,
	host string,
) (GeneratedRoute, bool) {
	if !resolved.ExperimentalChannel {
		logger.Warn("skipping non-http rule, enable the experimental channel to generate TCPRoutes", "host", host)
		b.warn(ctx, "non_http_rule_skipped")

		return GeneratedRoute{}, false
	}

	backend := ing.Spec.DefaultBackend
	if backend == nil || backend.Service == nil {
		logger.Warn("skipping non-http rule without a default backend service", "host", host)
		b.warn(ctx, "missing_default_backend")

		return GeneratedRoute{}, false
	}

	port, err := b.Resolver.ResolvePort(ctx, ing.Namespace, backend.Service.Name, backend.Service.Port)
	if err != nil {
		logger.Warn("skipping non-http rule with unresolvable default backend port",
			"host", host,
			"service", backend.Service.Name,
			"error", err,
		)
		b.warn(ctx, "unresolvable_port")

		return GeneratedRoute{}, false
	}

	route := &gatewayv1alpha2.TCPRoute{
		ObjectMeta: metav1.ObjectMeta{
			Name:      tcpRouteName(routeBaseName(ing.Name, host)),
			Namespace: ing.Namespace,
			Labels:    SourceLabels(ing.Namespace, ing.Name),
		},
		Spec: gatewayv1alpha2.TCPRouteSpec{
			CommonRouteSpec: gatewayv1.CommonRouteSpec{
				ParentRefs: []gatewayv1.ParentReference{parentRef(resolved)},
			},
			Rules: []gatewayv1alpha2.TCPRouteRule{
				{
					BackendRefs: []gatewayv1.BackendRef{
						{
							BackendObjectReference: gatewayv1.BackendObjectReference{
								Name: gatewayv1.ObjectName(backend.Service.Name),
								Port: ptr.To(gatewayv1.PortNumber(port)),
							},
						},
					},
				},
			},
		},
	}

	return GeneratedRoute{TCP: route}, true
}

func (b *Builder) warn(ctx context.Context, reason string) {
	if b.Metrics != nil {
		b.Metrics.RecordConversionWarning(ctx, reason)
	}
}

func newHTTPRoute(
	ing *networkingv1.Ingress,
	resolved config.Resolved,
	host, name string,
	rules []gatewayv1.HTTPRouteRule,
	tlsSecret string,
) GeneratedRoute {
	route := &gatewayv1.HTTPRoute{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: ing.Namespace,
			Labels:    SourceLabels(ing.Namespace, ing.Name),
		},
		Spec: gatewayv1.HTTPRouteSpec{
			CommonRouteSpec: gatewayv1.CommonRouteSpec{
				ParentRefs: []gatewayv1.ParentReference{parentRef(resolved)},
			},
			Hostnames: []gatewayv1.Hostname{gatewayv1.Hostname(host)},
			Rules:     rules,
		},
	}

	if tlsSecret != "" {
		route.Annotations = map[string]string{TLSSecretAnnotation: tlsSecret}
	}

	return GeneratedRoute{HTTP: route}
}

// parentRef builds the shared parent reference for every route generated from
// one Ingress. An empty gateway namespace is omitted rather than set: the
// Namespace type forbids empty strings, and an absent field means the route's
// own namespace.
func parentRef(resolved config.Resolved) gatewayv1.ParentReference {
	ref := gatewayv1.ParentReference{
		Group: ptr.To(gatewayv1.Group(gatewayv1.GroupName)),
		Kind:  ptr.To(gatewayv1.Kind(kindGateway)),
		Name:  gatewayv1.ObjectName(resolved.GatewayName),
	}

	if resolved.GatewayNamespace != "" {
		ref.Namespace = ptr.To(gatewayv1.Namespace(resolved.GatewayNamespace))
	}

	if resolved.SectionName != nil {
		ref.SectionName = ptr.To(gatewayv1.SectionName(*resolved.SectionName))
	}

	return ref
}

func pathMatchType(pathType *networkingv1.PathType) (gatewayv1.PathMatchType, bool) {
	if pathType == nil {
		return gatewayv1.PathMatchPathPrefix, true
	}

	switch *pathType {
	case networkingv1.PathTypePrefix, networkingv1.PathTypeImplementationSpecific:
		return gatewayv1.PathMatchPathPrefix, true
	case networkingv1.PathTypeExact:
		return gatewayv1.PathMatchExact, true
	}

	return "", false
}

// tlsSecretsByHost indexes the Ingress TLS entries by hostname. Only used as
// informational metadata on generated routes.
func tlsSecretsByHost(ing *networkingv1.Ingress) map[string]string {
	byHost := make(map[string]string)

	for _, tls := range ing.Spec.TLS {
		for _, host := range tls.Hosts {
			byHost[host] = tls.SecretName
		}
	}

	return byHost
}

// validateTLSHosts reports TLS entries naming hosts that appear in no rule.
func validateTLSHosts(ing *networkingv1.Ingress) []string {
	ruleHosts := make(map[string]bool, len(ing.Spec.Rules))
	for _, rule := range ing.Spec.Rules {
		ruleHosts[rule.Host] = true
	}

	var reasons []string

	for _, tls := range ing.Spec.TLS {
		for _, host := range tls.Hosts {
			if !ruleHosts[host] {
				reasons = append(reasons, fmt.Sprintf("tls entry references host %q not present in any rule", host))
			}
		}
	}

	return reasons
}

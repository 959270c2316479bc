package convert

import (
	apiequality "k8s.io/apimachinery/pkg/api/equality"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	gatewayv1alpha2 "sigs.k8s.io/gateway-api/apis/v1alpha2"
)

const (
	kindHTTPRoute = "HTTPRoute"
	kindTCPRoute  = "TCPRoute"
)

// Diff is the set of apply operations that reconcile the observed routes of
// one Ingress into the desired set. Applying it to the observed state, then
// diffing again, yields an empty Diff.
type Diff struct {
	Creates []GeneratedRoute
	Updates []GeneratedRoute
	Deletes []client.Object
}

// Empty reports whether the diff contains no operations.
func (d Diff) Empty() bool {
	return len(d.Creates) == 0 && len(d.Updates) == 0 && len(d.Deletes) == 0
}

type routeKey struct {
	kind string
	name string
}

// ComputeDiff compares the desired routes against the routes observed on the
// cluster. Desired routes absent from the observed set become creates,
// observed routes absent from the desired set become deletes, and routes
// present in both whose managed fields differ become updates. Ordering
// follows the desired slice for creates and updates and the observed slices
// for deletes.
func ComputeDiff(
	desired []GeneratedRoute,
	observedHTTP []gatewayv1.HTTPRoute,
	observedTCP []gatewayv1alpha2.TCPRoute,
) Diff {
	observed := make(map[routeKey]client.Object, len(observedHTTP)+len(observedTCP))

	for idx := range observedHTTP {
		observed[routeKey{kind: kindHTTPRoute, name: observedHTTP[idx].Name}] = &observedHTTP[idx]
	}

	for idx := range observedTCP {
		observed[routeKey{kind: kindTCPRoute, name: observedTCP[idx].Name}] = &observedTCP[idx]
	}

	var diff Diff

	wanted := make(map[routeKey]bool, len(desired))

	for _, route := range desired {
		key := routeKey{kind: routeKind(route), name: route.Name()}
		wanted[key] = true

		current, ok := observed[key]
		if !ok {
			diff.Creates = append(diff.Creates, route)

			continue
		}

		if !routeUpToDate(route, current) {
			diff.Updates = append(diff.Updates, route)
		}
	}

	for idx := range observedHTTP {
		if !wanted[routeKey{kind: kindHTTPRoute, name: observedHTTP[idx].Name}] {
			diff.Deletes = append(diff.Deletes, &observedHTTP[idx])
		}
	}

	for idx := range observedTCP {
		if !wanted[routeKey{kind: kindTCPRoute, name: observedTCP[idx].Name}] {
			diff.Deletes = append(diff.Deletes, &observedTCP[idx])
		}
	}

	return diff
}

func routeKind(route GeneratedRoute) string {
	if route.TCP != nil {
		return kindTCPRoute
	}

	return kindHTTPRoute
}

// routeUpToDate reports whether an observed route already carries the desired
// spec and managed metadata. Fields set by the API server or by other actors
// are ignored so a freshly applied route never diffs as stale.
func routeUpToDate(desired GeneratedRoute, current client.Object) bool {
	switch {
	case desired.HTTP != nil:
		observed, ok := current.(*gatewayv1.HTTPRoute)
		if !ok || !apiequality.Semantic.DeepEqual(desired.HTTP.Spec, observed.Spec) {
			return false
		}
	case desired.TCP != nil:
		observed, ok := current.(*gatewayv1alpha2.TCPRoute)
		if !ok || !apiequality.Semantic.DeepEqual(desired.TCP.Spec, observed.Spec) {
			return false
		}
	}

	meta := desired.objectMeta()

	return hasEntries(current.GetLabels(), meta.Labels) &&
		hasEntries(current.GetAnnotations(), meta.Annotations) &&
		hasOwnerRefs(current.GetOwnerReferences(), meta.OwnerReferences)
}

//nolint:funcorder // private helpers grouped after the diff flow
func hasEntries(current, wanted map[string]string) bool {
	for key, value := range wanted {
		if current[key] != value {
			return false
		}
	}

	return true
}

func hasOwnerRefs(current, wanted []metav1.OwnerReference) bool {
	for _, ref := range wanted {
		found := false

		for _, existing := range current {
			if existing.UID == ref.UID {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

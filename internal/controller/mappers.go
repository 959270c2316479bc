package controller

import (
	"context"

	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/i2gdev/ingress-to-gateway-controller/internal/convert"
)

// MapRouteToSource maps a generated route back to the Ingress it was
// translated from, using the source labels stamped at creation. Routes
// without our labels map to nothing, so manually created routes never
// trigger reconciles.
func MapRouteToSource(_ context.Context, obj client.Object) []reconcile.Request {
	labels := obj.GetLabels()
	if labels[convert.ManagedByLabel] != convert.ManagedByValue {
		return nil
	}

	name := labels[convert.SourceNameLabel]
	namespace := labels[convert.SourceNamespaceLabel]

	if name == "" || namespace == "" {
		return nil
	}

	return []reconcile.Request{
		{
			NamespacedName: types.NamespacedName{Namespace: namespace, Name: name},
		},
	}
}

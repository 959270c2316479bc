package convert

import (
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/i2gdev/ingress-to-gateway-controller/internal/config"
)

// LinkToSource attaches an owner reference pointing at the source Ingress so
// generated routes are garbage-collected with it. The reference is
// non-controlling and does not block owner deletion; when linking is disabled
// the route is returned unchanged.
func LinkToSource(route GeneratedRoute, ing *networkingv1.Ingress, resolved config.Resolved) GeneratedRoute {
	if !resolved.LinkToIngress {
		return route
	}

	meta := route.objectMeta()
	if meta == nil {
		return route
	}

	for _, ref := range meta.OwnerReferences {
		if ref.UID == ing.UID {
			return route
		}
	}

	meta.OwnerReferences = append(meta.OwnerReferences, metav1.OwnerReference{
		APIVersion:         networkingv1.SchemeGroupVersion.String(),
		Kind:               "Ingress",
		Name:               ing.Name,
		UID:                ing.UID,
		Controller:         ptr.To(false),
		BlockOwnerDeletion: ptr.To(false),
	})

	return route
}

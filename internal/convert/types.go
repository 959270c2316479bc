package convert

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	gatewayv1alpha2 "sigs.k8s.io/gateway-api/apis/v1alpha2"
)

// Labels stamped on every generated route. The controller discovers its own
// output through them, so they must be present whether or not owner references
// are attached.
const (
	// ManagedByLabel marks a route as generated by this controller.
	ManagedByLabel = "i2g.dev/managed-by"

	// ManagedByValue is the value of ManagedByLabel.
	ManagedByValue = "ingress-to-gateway-controller"

	// SourceNameLabel holds the name of the source Ingress.
	SourceNameLabel = "i2g.dev/source-name"

	// SourceNamespaceLabel holds the namespace of the source Ingress.
	SourceNamespaceLabel = "i2g.dev/source-namespace"
)

// TLSSecretAnnotation records, informationally, the TLS secret the source
// Ingress associated with the route's hostname. Listener and certificate
// configuration on the Gateway is never touched.
const TLSSecretAnnotation = "i2g.dev/tls-secret"

// GeneratedRoute is a tagged variant holding exactly one generated route
// object: an HTTPRoute from the standard channel or a TCPRoute from the
// experimental channel.
type GeneratedRoute struct {
	HTTP *gatewayv1.HTTPRoute
	TCP  *gatewayv1alpha2.TCPRoute
}

// Name returns the generated route's name.
func (g GeneratedRoute) Name() string {
	return g.Object().GetName()
}

// Object returns the underlying route as a client.Object.
func (g GeneratedRoute) Object() client.Object {
	if g.HTTP != nil {
		return g.HTTP
	}

	return g.TCP
}

// objectMeta returns a mutable reference to the route's metadata.
func (g GeneratedRoute) objectMeta() *metav1.ObjectMeta {
	if g.HTTP != nil {
		return &g.HTTP.ObjectMeta
	}

	return &g.TCP.ObjectMeta
}

// SourceLabels returns the labels that tie a generated route to its source
// Ingress identity.
func SourceLabels(namespace, name string) map[string]string {
	return map[string]string{
		ManagedByLabel:       ManagedByValue,
		SourceNameLabel:      name,
		SourceNamespaceLabel: namespace,
	}
}

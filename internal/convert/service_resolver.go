package convert

import (
	"context"

	"github.com/cockroachdb/errors"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ServicePortResolver resolves an Ingress backend port to a numeric port.
// Numeric ports pass through; named ports require a lookup of the backing
// Service.
type ServicePortResolver interface {
	ResolvePort(ctx context.Context, namespace, serviceName string, port networkingv1.ServiceBackendPort) (int32, error)
}

// clientPortResolver resolves named ports by fetching the Service from the
// cluster.
type clientPortResolver struct {
	reader client.Reader
}

// NewServicePortResolver creates a ServicePortResolver backed by a cluster
// client.
func NewServicePortResolver(reader client.Reader) ServicePortResolver {
	return &clientPortResolver{reader: reader}
}

func (r *clientPortResolver) ResolvePort(
	ctx context.Context,
	namespace, serviceName string,
	port networkingv1.ServiceBackendPort,
) (int32, error) {
	if port.Number != 0 {
		return port.Number, nil
	}

	if port.Name == "" {
		return 0, errors.Newf("no port specified for service %s/%s", namespace, serviceName)
	}

	var svc corev1.Service

	err := r.reader.Get(ctx, client.ObjectKey{Namespace: namespace, Name: serviceName}, &svc)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get service %s/%s", namespace, serviceName)
	}

	for _, svcPort := range svc.Spec.Ports {
		if svcPort.Name == port.Name {
			return svcPort.Port, nil
		}
	}

	return 0, errors.Newf("port %q not found in service %s/%s", port.Name, namespace, serviceName)
}

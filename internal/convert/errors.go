package convert

import (
	"strings"

	"github.com/cockroachdb/errors"
	"k8s.io/apimachinery/pkg/types"
)

// MalformedIngressError reports an Ingress that cannot be converted: a rule
// whose paths reference no usable backend, a TLS entry naming a host absent
// from every rule, or an unrecognized path type. It is terminal for the
// reconciliation pass; no partial desired state is applied.
type MalformedIngressError struct {
	Ingress types.NamespacedName
	Reasons []string
}

func (e *MalformedIngressError) Error() string {
	return "malformed ingress " + e.Ingress.String() + ": " + strings.Join(e.Reasons, "; ")
}

// IsMalformedIngress reports whether err is (or wraps) a MalformedIngressError.
func IsMalformedIngress(err error) bool {
	var malformed *MalformedIngressError

	return errors.As(err, &malformed)
}

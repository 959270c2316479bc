package controller

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	gatewayv1alpha2 "sigs.k8s.io/gateway-api/apis/v1alpha2"

	"github.com/i2gdev/ingress-to-gateway-controller/internal/config"
	"github.com/i2gdev/ingress-to-gateway-controller/internal/convert"
	"github.com/i2gdev/ingress-to-gateway-controller/internal/metrics"
)

func newTestReconciler(defaults config.Defaults, objs ...client.Object) *IngressReconciler {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(gatewayv1.Install(scheme))
	utilruntime.Must(gatewayv1alpha2.Install(scheme))

	fakeClient := fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...).Build()
	collector := metrics.NewNoopCollector()

	return &IngressReconciler{
		Client:   fakeClient,
		Scheme:   scheme,
		Defaults: defaults,
		Builder:  convert.NewBuilder(convert.NewServicePortResolver(fakeClient), collector),
		Metrics:  collector,
	}
}

func testDefaults() config.Defaults {
	return config.Defaults{
		LinkToIngress:           true,
		DefaultGatewayName:      "shared-gateway",
		DefaultGatewayNamespace: "gateway-system",
	}
}

func newIngress(name string, pathCount int) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	paths := make([]networkingv1.HTTPIngressPath, 0, pathCount)

	for i := range pathCount {
		paths = append(paths, networkingv1.HTTPIngressPath{
			Path:     fmt.Sprintf("/p%d", i),
			PathType: &pathType,
			Backend: networkingv1.IngressBackend{
				Service: &networkingv1.IngressServiceBackend{
					Name: "web",
					Port: networkingv1.ServiceBackendPort{Number: 80},
				},
			},
		})
	}

	return &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			UID:       "ingress-uid",
		},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{
				{
					Host: "example.com",
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{Paths: paths},
					},
				},
			},
		},
	}
}

func requestFor(ing *networkingv1.Ingress) ctrl.Request {
	return ctrl.Request{
		NamespacedName: types.NamespacedName{Namespace: ing.Namespace, Name: ing.Name},
	}
}

func listHTTPRoutes(t *testing.T, c client.Client) []gatewayv1.HTTPRoute {
	t.Helper()

	var routes gatewayv1.HTTPRouteList
	require.NoError(t, c.List(context.Background(), &routes, client.InNamespace("default")))

	return routes.Items
}

func listTCPRoutes(t *testing.T, c client.Client) []gatewayv1alpha2.TCPRoute {
	t.Helper()

	var routes gatewayv1alpha2.TCPRouteList
	require.NoError(t, c.List(context.Background(), &routes, client.InNamespace("default")))

	return routes.Items
}

func TestReconcile_CreatesRoutes(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 2)
	r := newTestReconciler(testDefaults(), ing)

	result, err := r.Reconcile(context.Background(), requestFor(ing))

	require.NoError(t, err)
	assert.Zero(t, result.RequeueAfter)

	routes := listHTTPRoutes(t, r.Client)
	require.Len(t, routes, 1)
	assert.Equal(t, "app-example-com-http", routes[0].Name)
	assert.Equal(t, convert.ManagedByValue, routes[0].Labels[convert.ManagedByLabel])
	assert.Len(t, routes[0].Spec.Rules, 2)

	refs := routes[0].OwnerReferences
	require.Len(t, refs, 1)
	assert.Equal(t, "Ingress", refs[0].Kind)
	assert.Equal(t, "app", refs[0].Name)
}

func TestReconcile_SplitsOverMatchCap(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 20)
	r := newTestReconciler(testDefaults(), ing)

	_, err := r.Reconcile(context.Background(), requestFor(ing))
	require.NoError(t, err)

	routes := listHTTPRoutes(t, r.Client)
	require.Len(t, routes, 2)
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 5)
	r := newTestReconciler(testDefaults(), ing)

	_, err := r.Reconcile(context.Background(), requestFor(ing))
	require.NoError(t, err)

	before := listHTTPRoutes(t, r.Client)
	require.Len(t, before, 1)

	// A second pass over an unchanged Ingress must perform no writes.
	_, err = r.Reconcile(context.Background(), requestFor(ing))
	require.NoError(t, err)

	after := listHTTPRoutes(t, r.Client)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ResourceVersion, after[0].ResourceVersion)
}

func TestReconcile_ShrinkDeletesStaleChunk(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 20)
	r := newTestReconciler(testDefaults(), ing)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)
	require.Len(t, listHTTPRoutes(t, r.Client), 2)

	var current networkingv1.Ingress
	require.NoError(t, r.Get(ctx, requestFor(ing).NamespacedName, &current))
	current.Spec = newIngress("app", 3).Spec
	require.NoError(t, r.Update(ctx, &current))

	_, err = r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)

	routes := listHTTPRoutes(t, r.Client)
	require.Len(t, routes, 1)
	assert.Equal(t, "app-example-com-http", routes[0].Name)
	assert.Len(t, routes[0].Spec.Rules, 3)
}

func TestReconcile_RestoresTamperedRoute(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 1)
	r := newTestReconciler(testDefaults(), ing)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)

	routes := listHTTPRoutes(t, r.Client)
	require.Len(t, routes, 1)

	tampered := routes[0].DeepCopy()
	tampered.Spec.Rules[0].BackendRefs[0].Name = "evil"
	require.NoError(t, r.Update(ctx, tampered))

	_, err = r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)

	routes = listHTTPRoutes(t, r.Client)
	require.Len(t, routes, 1)
	assert.Equal(t, gatewayv1.ObjectName("web"), routes[0].Spec.Rules[0].BackendRefs[0].Name)
}

func TestReconcile_IngressDeletedRemovesRoutes(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 2)
	r := newTestReconciler(testDefaults(), ing)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)
	require.Len(t, listHTTPRoutes(t, r.Client), 1)

	var current networkingv1.Ingress
	require.NoError(t, r.Get(ctx, requestFor(ing).NamespacedName, &current))
	require.NoError(t, r.Delete(ctx, &current))

	_, err = r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)

	assert.Empty(t, listHTTPRoutes(t, r.Client))
}

func TestReconcile_TranslateOptOutRemovesRoutes(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 2)
	r := newTestReconciler(testDefaults(), ing)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)
	require.Len(t, listHTTPRoutes(t, r.Client), 1)

	var current networkingv1.Ingress
	require.NoError(t, r.Get(ctx, requestFor(ing).NamespacedName, &current))
	current.Annotations = map[string]string{config.AnnotationTranslate: "false"}
	require.NoError(t, r.Update(ctx, &current))

	_, err = r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)

	assert.Empty(t, listHTTPRoutes(t, r.Client))
}

func TestReconcile_SkipByDefaultRequiresOptIn(t *testing.T) {
	t.Parallel()

	defaults := testDefaults()
	defaults.SkipByDefault = true

	ing := newIngress("app", 2)
	r := newTestReconciler(defaults, ing)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)
	assert.Empty(t, listHTTPRoutes(t, r.Client))

	var current networkingv1.Ingress
	require.NoError(t, r.Get(ctx, requestFor(ing).NamespacedName, &current))
	current.Annotations = map[string]string{config.AnnotationTranslate: "true"}
	require.NoError(t, r.Update(ctx, &current))

	_, err = r.Reconcile(ctx, requestFor(ing))
	require.NoError(t, err)
	assert.Len(t, listHTTPRoutes(t, r.Client), 1)
}

func TestReconcile_MalformedIngressNotRequeued(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 1)
	ing.Spec.TLS = []networkingv1.IngressTLS{
		{Hosts: []string{"unknown.example.com"}, SecretName: "tls"},
	}

	r := newTestReconciler(testDefaults(), ing)

	result, err := r.Reconcile(context.Background(), requestFor(ing))

	// Terminal for the pass: no error, no requeue, nothing applied.
	require.NoError(t, err)
	assert.Zero(t, result.RequeueAfter)
	assert.Empty(t, listHTTPRoutes(t, r.Client))
}

func TestReconcile_LinkToIngressDisabled(t *testing.T) {
	t.Parallel()

	defaults := testDefaults()
	defaults.LinkToIngress = false

	ing := newIngress("app", 1)
	r := newTestReconciler(defaults, ing)

	_, err := r.Reconcile(context.Background(), requestFor(ing))
	require.NoError(t, err)

	routes := listHTTPRoutes(t, r.Client)
	require.Len(t, routes, 1)
	assert.Empty(t, routes[0].OwnerReferences)
}

func TestReconcile_TCPRouteOnExperimentalChannel(t *testing.T) {
	t.Parallel()

	defaults := testDefaults()
	defaults.ExperimentalChannel = true

	ing := newIngress("db", 0)
	ing.Spec.Rules[0].HTTP = nil
	ing.Spec.DefaultBackend = &networkingv1.IngressBackend{
		Service: &networkingv1.IngressServiceBackend{
			Name: "postgres",
			Port: networkingv1.ServiceBackendPort{Number: 5432},
		},
	}

	r := newTestReconciler(defaults, ing)

	_, err := r.Reconcile(context.Background(), requestFor(ing))
	require.NoError(t, err)

	routes := listTCPRoutes(t, r.Client)
	require.Len(t, routes, 1)
	assert.Equal(t, "db-example-com-tcp", routes[0].Name)
	require.Len(t, routes[0].OwnerReferences, 1)
	assert.Equal(t, "db", routes[0].OwnerReferences[0].Name)
}

func TestReconcile_StandardChannelIgnoresTCPRoutes(t *testing.T) {
	t.Parallel()

	// A leftover TCPRoute from an earlier experimental-channel run. With the
	// experimental channel off the reconciler must not list or touch the
	// TCPRoute kind at all.
	stale := &gatewayv1alpha2.TCPRoute{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "app-example-com-tcp",
			Namespace: "default",
			Labels:    convert.SourceLabels("default", "app"),
		},
	}

	ing := newIngress("app", 1)
	r := newTestReconciler(testDefaults(), ing, stale)

	_, err := r.Reconcile(context.Background(), requestFor(ing))
	require.NoError(t, err)

	httpRoutes := listHTTPRoutes(t, r.Client)
	require.Len(t, httpRoutes, 1)
	assert.Equal(t, "app-example-com-http", httpRoutes[0].Name)

	tcpRoutes := listTCPRoutes(t, r.Client)
	require.Len(t, tcpRoutes, 1)
	assert.Equal(t, "app-example-com-tcp", tcpRoutes[0].Name)
}

func TestReconcile_GatewayOverrideAnnotations(t *testing.T) {
	t.Parallel()

	ing := newIngress("app", 1)
	ing.Annotations = map[string]string{
		config.AnnotationGatewayName:      "edge-gateway",
		config.AnnotationGatewayNamespace: "edge-system",
		config.AnnotationSectionName:      "https",
	}

	r := newTestReconciler(testDefaults(), ing)

	_, err := r.Reconcile(context.Background(), requestFor(ing))
	require.NoError(t, err)

	routes := listHTTPRoutes(t, r.Client)
	require.Len(t, routes, 1)

	parent := routes[0].Spec.ParentRefs[0]
	assert.Equal(t, gatewayv1.ObjectName("edge-gateway"), parent.Name)
	assert.Equal(t, gatewayv1.Namespace("edge-system"), *parent.Namespace)
	require.NotNil(t, parent.SectionName)
	assert.Equal(t, gatewayv1.SectionName("https"), *parent.SectionName)
}

package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/util/retry"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	gatewayv1alpha2 "sigs.k8s.io/gateway-api/apis/v1alpha2"

	"github.com/i2gdev/ingress-to-gateway-controller/internal/config"
	"github.com/i2gdev/ingress-to-gateway-controller/internal/convert"
	"github.com/i2gdev/ingress-to-gateway-controller/internal/metrics"
)

// Reconcile outcome labels for metrics.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusCleanup  = "cleanup"
	statusRejected = "rejected"
)

// Apply operation labels for metrics.
const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

const (
	routeTypeHTTP = "http"
	routeTypeTCP  = "tcp"
)

// IngressReconciler reconciles Ingress resources into Gateway API routes.
//
// Key behaviors:
//   - Resolves per-Ingress configuration from controller defaults and annotations
//   - Converts each translated Ingress into HTTPRoutes (and TCPRoutes on the
//     experimental channel) through the convert package
//   - Applies only the difference between desired and observed routes, so a
//     reconcile of an unchanged Ingress performs no writes
//   - Removes generated routes when the Ingress is deleted or opts out
type IngressReconciler struct {
	client.Client

	// Scheme is the runtime scheme for API type registration.
	Scheme *runtime.Scheme

	// Defaults holds cluster-wide translation settings overridable per Ingress.
	Defaults config.Defaults

	// Builder converts Ingress specs into route resources.
	Builder *convert.Builder

	// Metrics records reconcile outcomes and apply operations.
	Metrics metrics.Collector
}

//nolint:noinlineerr // inline error handling for controller pattern
func (r *IngressReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	startTime := time.Now()
	logger := slog.Default().With("ingress", req.NamespacedName)

	var ing networkingv1.Ingress
	if err := r.Get(ctx, req.NamespacedName, &ing); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info("ingress deleted, removing generated routes")

			return r.cleanupRoutes(ctx, logger, req.NamespacedName, startTime)
		}

		r.Metrics.RecordReconcileError(ctx, metrics.ClassifyAPIError(err))

		return ctrl.Result{}, errors.Wrap(err, "failed to get ingress")
	}

	resolved := config.Resolve(r.Defaults, ing.Annotations, func(annotation, value, reason string) {
		logger.Warn("ignoring invalid annotation",
			"annotation", annotation,
			"value", value,
			"reason", reason,
		)
	})

	if !resolved.ShouldTranslate() {
		logger.Info("ingress opted out of translation, removing generated routes")

		return r.cleanupRoutes(ctx, logger, req.NamespacedName, startTime)
	}

	desired, err := r.Builder.Convert(ctx, &ing, resolved)
	if err != nil {
		if convert.IsMalformedIngress(err) {
			// Malformed input will not fix itself on retry; wait for the
			// next Ingress edit instead of requeueing.
			logger.Error("refusing to translate malformed ingress", "error", err)
			r.Metrics.RecordMalformedIngress(ctx)
			r.Metrics.RecordReconcileDuration(ctx, statusRejected, time.Since(startTime))

			return ctrl.Result{}, nil
		}

		r.Metrics.RecordReconcileError(ctx, metrics.ClassifyAPIError(err))
		r.Metrics.RecordReconcileDuration(ctx, statusError, time.Since(startTime))

		return ctrl.Result{}, errors.Wrap(err, "failed to convert ingress")
	}

	for idx := range desired {
		desired[idx] = convert.LinkToSource(desired[idx], &ing, resolved)
	}

	observedHTTP, observedTCP, err := r.observedRoutes(ctx, req.NamespacedName)
	if err != nil {
		r.Metrics.RecordReconcileError(ctx, metrics.ClassifyAPIError(err))
		r.Metrics.RecordReconcileDuration(ctx, statusError, time.Since(startTime))

		return ctrl.Result{}, err
	}

	diff := convert.ComputeDiff(desired, observedHTTP, observedTCP)

	if err := r.applyDiff(ctx, logger, diff); err != nil {
		r.Metrics.RecordReconcileError(ctx, metrics.ClassifyAPIError(err))
		r.Metrics.RecordReconcileDuration(ctx, statusError, time.Since(startTime))

		return ctrl.Result{}, err
	}

	httpCount, tcpCount := 0, 0

	for _, route := range desired {
		if route.TCP != nil {
			tcpCount++
		} else {
			httpCount++
		}
	}

	r.Metrics.RecordGeneratedRoutes(ctx, routeTypeHTTP, httpCount)
	r.Metrics.RecordGeneratedRoutes(ctx, routeTypeTCP, tcpCount)
	r.Metrics.RecordReconcileDuration(ctx, statusSuccess, time.Since(startTime))

	if !diff.Empty() {
		logger.Info("reconciled ingress",
			"creates", len(diff.Creates),
			"updates", len(diff.Updates),
			"deletes", len(diff.Deletes),
		)
	}

	return ctrl.Result{}, nil
}

// cleanupRoutes deletes every route generated from the named Ingress. Used
// both when the Ingress is gone and when it is no longer translated.
//
//nolint:funcorder // placed near Reconcile for readability
func (r *IngressReconciler) cleanupRoutes(
	ctx context.Context,
	logger *slog.Logger,
	source types.NamespacedName,
	startTime time.Time,
) (ctrl.Result, error) {
	observedHTTP, observedTCP, err := r.observedRoutes(ctx, source)
	if err != nil {
		r.Metrics.RecordReconcileError(ctx, metrics.ClassifyAPIError(err))

		return ctrl.Result{}, err
	}

	deleted := 0

	for idx := range observedHTTP {
		if err := r.deleteRoute(ctx, &observedHTTP[idx], routeTypeHTTP); err != nil {
			return ctrl.Result{}, err
		}

		deleted++
	}

	for idx := range observedTCP {
		if err := r.deleteRoute(ctx, &observedTCP[idx], routeTypeTCP); err != nil {
			return ctrl.Result{}, err
		}

		deleted++
	}

	if deleted > 0 {
		logger.Info("deleted generated routes", "count", deleted)
		r.Metrics.RecordOrphanedRoutesDeleted(ctx, deleted)
	}

	r.Metrics.RecordReconcileDuration(ctx, statusCleanup, time.Since(startTime))

	return ctrl.Result{}, nil
}

// observedRoutes lists the routes this controller generated from one Ingress,
// identified by source labels.
//
//nolint:funcorder // private helper method
func (r *IngressReconciler) observedRoutes(
	ctx context.Context,
	source types.NamespacedName,
) ([]gatewayv1.HTTPRoute, []gatewayv1alpha2.TCPRoute, error) {
	selector := client.MatchingLabels(convert.SourceLabels(source.Namespace, source.Name))

	var httpRoutes gatewayv1.HTTPRouteList

	err := r.List(ctx, &httpRoutes, client.InNamespace(source.Namespace), selector)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to list generated httproutes")
	}

	// TCPRoute is an experimental-channel CRD; listing it on a cluster
	// without the CRD fails every reconcile.
	if !r.Defaults.ExperimentalChannel {
		return httpRoutes.Items, nil, nil
	}

	var tcpRoutes gatewayv1alpha2.TCPRouteList

	err = r.List(ctx, &tcpRoutes, client.InNamespace(source.Namespace), selector)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to list generated tcproutes")
	}

	return httpRoutes.Items, tcpRoutes.Items, nil
}

//nolint:funcorder // private helper method
func (r *IngressReconciler) applyDiff(ctx context.Context, logger *slog.Logger, diff convert.Diff) error {
	for _, route := range diff.Creates {
		if err := r.createRoute(ctx, logger, route); err != nil {
			return err
		}
	}

	for _, route := range diff.Updates {
		if err := r.updateRoute(ctx, route); err != nil {
			return err
		}
	}

	for _, obj := range diff.Deletes {
		routeType := routeTypeHTTP
		if _, ok := obj.(*gatewayv1alpha2.TCPRoute); ok {
			routeType = routeTypeTCP
		}

		if err := r.deleteRoute(ctx, obj, routeType); err != nil {
			return err
		}
	}

	return nil
}

//nolint:funcorder,noinlineerr // private helper method
func (r *IngressReconciler) createRoute(ctx context.Context, logger *slog.Logger, route convert.GeneratedRoute) error {
	startTime := time.Now()
	routeType := generatedRouteType(route)

	err := r.Create(ctx, route.Object())
	if apierrors.IsAlreadyExists(err) {
		// Raced another create of the same route, converge via update.
		logger.Info("route already exists, updating instead", "route", route.Name())

		return r.updateRoute(ctx, route)
	}

	if err != nil {
		r.Metrics.RecordApplyError(ctx, opCreate, metrics.ClassifyAPIError(err))

		return errors.Wrapf(err, "failed to create route %q", route.Name())
	}

	r.Metrics.RecordApplyOperation(ctx, opCreate, routeType, statusSuccess, time.Since(startTime))

	return nil
}

// updateRoute overwrites the managed fields of an existing route with the
// desired state, retrying on conflicts against a fresh copy each attempt.
//
//nolint:funcorder,noinlineerr // private helper method
func (r *IngressReconciler) updateRoute(ctx context.Context, route convert.GeneratedRoute) error {
	startTime := time.Now()
	routeType := generatedRouteType(route)
	key := client.ObjectKeyFromObject(route.Object())

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if route.TCP != nil {
			var fresh gatewayv1alpha2.TCPRoute
			if err := r.Get(ctx, key, &fresh); err != nil {
				return errors.Wrap(err, "failed to get fresh tcproute")
			}

			fresh.Spec = route.TCP.Spec
			mergeManagedMeta(&fresh, route.TCP)

			return r.Update(ctx, &fresh)
		}

		var fresh gatewayv1.HTTPRoute
		if err := r.Get(ctx, key, &fresh); err != nil {
			return errors.Wrap(err, "failed to get fresh httproute")
		}

		fresh.Spec = route.HTTP.Spec
		mergeManagedMeta(&fresh, route.HTTP)

		return r.Update(ctx, &fresh)
	})
	if err != nil {
		r.Metrics.RecordApplyError(ctx, opUpdate, metrics.ClassifyAPIError(err))

		return errors.Wrapf(err, "failed to update route %q", route.Name())
	}

	r.Metrics.RecordApplyOperation(ctx, opUpdate, routeType, statusSuccess, time.Since(startTime))

	return nil
}

//nolint:funcorder,noinlineerr // private helper method
func (r *IngressReconciler) deleteRoute(ctx context.Context, obj client.Object, routeType string) error {
	startTime := time.Now()

	err := r.Delete(ctx, obj)
	if err != nil && !apierrors.IsNotFound(err) {
		r.Metrics.RecordApplyError(ctx, opDelete, metrics.ClassifyAPIError(err))

		return errors.Wrapf(err, "failed to delete route %q", obj.GetName())
	}

	r.Metrics.RecordApplyOperation(ctx, opDelete, routeType, statusSuccess, time.Since(startTime))

	return nil
}

func (r *IngressReconciler) SetupWithManager(mgr ctrl.Manager) error {
	builder := ctrl.NewControllerManagedBy(mgr).
		For(&networkingv1.Ingress{}).
		// Filter out status-only updates to prevent infinite reconciliation
		// loops; annotation edits must still reconcile because they change
		// the resolved configuration without bumping the generation.
		WithEventFilter(predicate.Or[client.Object](
			predicate.GenerationChangedPredicate{},
			predicate.AnnotationChangedPredicate{},
		)).
		Watches(
			&gatewayv1.HTTPRoute{},
			handler.EnqueueRequestsFromMapFunc(MapRouteToSource),
		)

	// TCPRoute is an experimental-channel CRD; watching it on a cluster
	// without the CRD fails informer startup.
	if r.Defaults.ExperimentalChannel {
		builder = builder.Watches(
			&gatewayv1alpha2.TCPRoute{},
			handler.EnqueueRequestsFromMapFunc(MapRouteToSource),
		)
	}

	err := builder.Complete(r)
	if err != nil {
		return errors.Wrap(err, "failed to setup ingress controller")
	}

	return nil
}

func generatedRouteType(route convert.GeneratedRoute) string {
	if route.TCP != nil {
		return routeTypeTCP
	}

	return routeTypeHTTP
}

func mergeManagedMeta(fresh client.Object, desired client.Object) {
	labels := fresh.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}

	for key, value := range desired.GetLabels() {
		labels[key] = value
	}

	fresh.SetLabels(labels)

	annotations := fresh.GetAnnotations()
	if annotations == nil && len(desired.GetAnnotations()) > 0 {
		annotations = make(map[string]string)
	}

	for key, value := range desired.GetAnnotations() {
		annotations[key] = value
	}

	fresh.SetAnnotations(annotations)

	refs := fresh.GetOwnerReferences()

	for _, ref := range desired.GetOwnerReferences() {
		found := false

		for _, existing := range refs {
			if existing.UID == ref.UID {
				found = true

				break
			}
		}

		if !found {
			refs = append(refs, ref)
		}
	}

	fresh.SetOwnerReferences(refs)
}

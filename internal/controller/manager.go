package controller

import (
	"context"

	"github.com/cockroachdb/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	"sigs.k8s.io/controller-runtime/pkg/metrics/server"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	gatewayv1alpha2 "sigs.k8s.io/gateway-api/apis/v1alpha2"

	"github.com/i2gdev/ingress-to-gateway-controller/internal/config"
	"github.com/i2gdev/ingress-to-gateway-controller/internal/convert"
	"github.com/i2gdev/ingress-to-gateway-controller/internal/metrics"
)

// Config holds all configuration options for the controller manager.
// Values are typically populated from CLI flags or environment variables.
type Config struct {
	// DefaultGatewayName is the Gateway every generated route attaches to
	// unless an Ingress overrides it (required).
	DefaultGatewayName string

	// DefaultGatewayNamespace is the namespace of the default Gateway.
	// Defaults to the Ingress namespace when empty.
	DefaultGatewayNamespace string

	// LinkToIngress attaches owner references from generated routes to their
	// source Ingress so they are garbage-collected with it.
	LinkToIngress bool

	// ExperimentalChannel enables TCPRoute generation for rules without an
	// HTTP section.
	ExperimentalChannel bool

	// SkipByDefault inverts the translation gate: only Ingresses that opt in
	// via annotation are translated.
	SkipByDefault bool

	// SplitPaths emits one single-match HTTPRoute per path instead of
	// packing matches together.
	SplitPaths bool

	// MetricsAddr is the address for the Prometheus metrics endpoint.
	MetricsAddr string

	// HealthAddr is the address for health and readiness probe endpoints.
	HealthAddr string

	// LeaderElect enables leader election for high availability.
	// Required when running multiple replicas.
	LeaderElect bool

	// LeaderElectNS is the namespace for the leader election lease.
	LeaderElectNS string

	// LeaderElectName is the name of the leader election lease.
	LeaderElectName string
}

// Run initializes and starts the controller manager with the provided
// configuration. It registers the Gateway API schemes, wires the conversion
// builder and Ingress reconciler, and blocks until the context is cancelled
// or an error occurs.
//
//nolint:noinlineerr // controller setup requires multiple steps
func Run(ctx context.Context, cfg *Config) error {
	logger := log.FromContext(ctx).WithName("manager")
	logger.Info("initializing controller manager")

	mgrOptions := ctrl.Options{
		Metrics: server.Options{
			BindAddress: cfg.MetricsAddr,
		},
		HealthProbeBindAddress: cfg.HealthAddr,
	}

	if cfg.LeaderElect {
		mgrOptions.LeaderElection = true
		mgrOptions.LeaderElectionID = cfg.LeaderElectName
		mgrOptions.LeaderElectionNamespace = cfg.LeaderElectNS

		logger.Info("leader election enabled",
			"id", cfg.LeaderElectName,
			"namespace", cfg.LeaderElectNS,
		)
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), mgrOptions)
	if err != nil {
		return errors.Wrap(err, "failed to create manager")
	}

	if err := gatewayv1.Install(mgr.GetScheme()); err != nil {
		return errors.Wrap(err, "failed to add gateway-api scheme")
	}

	if err := gatewayv1alpha2.Install(mgr.GetScheme()); err != nil {
		return errors.Wrap(err, "failed to add gateway-api experimental scheme")
	}

	collector := metrics.NewCollector(ctrlmetrics.Registry)

	reconciler := &IngressReconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
		Defaults: config.Defaults{
			ExperimentalChannel:     cfg.ExperimentalChannel,
			LinkToIngress:           cfg.LinkToIngress,
			DefaultGatewayName:      cfg.DefaultGatewayName,
			DefaultGatewayNamespace: cfg.DefaultGatewayNamespace,
			SkipByDefault:           cfg.SkipByDefault,
			SplitPaths:              cfg.SplitPaths,
		},
		Builder: convert.NewBuilder(convert.NewServicePortResolver(mgr.GetClient()), collector),
		Metrics: collector,
	}

	if err := reconciler.SetupWithManager(mgr); err != nil {
		return errors.Wrap(err, "failed to setup ingress controller")
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return errors.Wrap(err, "failed to set up health check")
	}

	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return errors.Wrap(err, "failed to set up ready check")
	}

	logger.Info("starting manager")

	if err := mgr.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start manager")
	}

	return nil
}

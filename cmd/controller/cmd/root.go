// Package cmd implements the CLI entrypoint for the controller.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/i2gdev/ingress-to-gateway-controller/internal/controller"
)

//nolint:gochecknoglobals // set by SetVersion from main
var (
	version = "development"
	gitsha  = "development"
)

func SetVersion(ver, sha string) {
	version = ver
	gitsha = sha
}

//nolint:gochecknoglobals // cobra command pattern
var rootCmd = &cobra.Command{
	Use:   "i2g-controller",
	Short: "Kubernetes controller translating Ingress resources into Gateway API routes",
	Long: `A Kubernetes controller that watches Ingress resources and generates
equivalent Gateway API HTTPRoute (and optionally TCPRoute) resources attached
to a configured Gateway. Translation behavior can be overridden per Ingress
through i2g.dev/ annotations.`,
	RunE:          runController,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	rootCmd.Flags().String("default-gateway-name", "", "Gateway generated routes attach to (required)")
	rootCmd.Flags().String("default-gateway-namespace", "", "Namespace of the default Gateway (defaults to the Ingress namespace)")
	rootCmd.Flags().Bool("link-to-ingress", true, "Attach owner references from generated routes to their Ingress")
	rootCmd.Flags().Bool("experimental-channel", false, "Generate TCPRoutes for rules without an HTTP section")
	rootCmd.Flags().Bool("skip-by-default", false, "Only translate Ingresses that opt in via annotation")
	rootCmd.Flags().Bool("split-paths", false, "Emit one single-match HTTPRoute per path")
	rootCmd.Flags().String("metrics-addr", ":8080", "Address for metrics endpoint")
	rootCmd.Flags().String("health-addr", ":8081", "Address for health probe endpoint")

	// Leader election flags
	rootCmd.Flags().Bool("leader-elect", false, "Enable leader election for high availability")
	rootCmd.Flags().String("leader-election-namespace", "", "Namespace for leader election lease (defaults to controller namespace)")
	rootCmd.Flags().String("leader-election-name", "ingress-to-gateway-controller-leader", "Name of the leader election lease")

	_ = viper.BindPFlags(rootCmd.Flags())
	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	viper.SetEnvPrefix("I2G")
	viper.AutomaticEnv()

	viper.SetDefault("link-to-ingress", true)
	viper.SetDefault("experimental-channel", false)
	viper.SetDefault("skip-by-default", false)
	viper.SetDefault("split-paths", false)
	viper.SetDefault("metrics-addr", ":8080")
	viper.SetDefault("health-addr", ":8081")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "json")
	viper.SetDefault("leader-elect", false)
	viper.SetDefault("leader-election-name", "ingress-to-gateway-controller-leader")
}

func Execute() error {
	return errors.Wrap(rootCmd.Execute(), "command execution failed")
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo

	switch viper.GetString("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if viper.GetString("log-format") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

//nolint:noinlineerr // inline error handling is fine here
func runController(_ *cobra.Command, _ []string) error {
	logger := setupLogger()
	slog.SetDefault(logger)

	ctrl.SetLogger(logr.FromSlogHandler(logger.Handler()))

	logger.Info("starting ingress-to-gateway-controller",
		"version", version,
		"gitsha", gitsha,
	)

	gatewayName := viper.GetString("default-gateway-name")
	if gatewayName == "" {
		return errors.New("default-gateway-name is required (use --default-gateway-name or I2G_DEFAULT_GATEWAY_NAME env var)")
	}

	cfg := controller.Config{
		DefaultGatewayName:      gatewayName,
		DefaultGatewayNamespace: viper.GetString("default-gateway-namespace"),
		LinkToIngress:           viper.GetBool("link-to-ingress"),
		ExperimentalChannel:     viper.GetBool("experimental-channel"),
		SkipByDefault:           viper.GetBool("skip-by-default"),
		SplitPaths:              viper.GetBool("split-paths"),
		MetricsAddr:             viper.GetString("metrics-addr"),
		HealthAddr:              viper.GetString("health-addr"),

		LeaderElect:     viper.GetBool("leader-elect"),
		LeaderElectNS:   viper.GetString("leader-election-namespace"),
		LeaderElectName: viper.GetString("leader-election-name"),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := controller.Run(ctx, &cfg); err != nil {
		return errors.Wrap(err, "failed to run controller")
	}

	return nil
}

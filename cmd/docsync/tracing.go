package main

import (
	"context"

	"github.com/jingkaihe/docsync/pkg/telemetry"
	"github.com/jingkaihe/docsync/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func initTracing(ctx context.Context) (telemetry.ShutdownFunc, error) {
	return telemetry.Setup(ctx, telemetry.Config{
		Enabled:        appConfig.Tracing.Enabled,
		ServiceVersion: version.Get().Version,
		Sampler:        appConfig.Tracing.Sampler,
		Ratio:          appConfig.Tracing.Ratio,
	})
}

// withTracing runs cmd inside a "docsync.<name>" span carrying the
// positional path and every flag set on the command line.
func withTracing(cmd *cobra.Command) *cobra.Command {
	run := cmd.Run

	cmd.Run = func(cmd *cobra.Command, args []string) {
		attrs := []attribute.KeyValue{
			attribute.String("docsync.command", cmd.CommandPath()),
		}
		if len(args) > 0 {
			attrs = append(attrs, attribute.String("docsync.path", args[0]))
		}
		cmd.Flags().Visit(func(f *pflag.Flag) {
			attrs = append(attrs, attribute.String("docsync.flag."+f.Name, f.Value.String()))
		})

		ctx, span := telemetry.Tracer("docsync/cli").Start(cmd.Context(), "docsync."+cmd.Name(),
			trace.WithAttributes(attrs...))
		defer span.End()

		cmd.SetContext(ctx)
		run(cmd, args)
	}
	return cmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Bool("tracing-enabled", false, "Export OpenTelemetry traces over OTLP/HTTP")
	flags.String("tracing-sampler", "always", "Tracing sampler (always, never, ratio)")
	flags.Float64("tracing-ratio", 1, "Sampling ratio of the ratio sampler")

	viper.BindPFlag("tracing.enabled", flags.Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", flags.Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", flags.Lookup("tracing-ratio"))
}

// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/dynconf/internal/idgen"
)

const serviceName = "dynconf"

var (
	meter = otel.Meter("github.com/cardinalhq/dynconf")

	myInstanceID int64

	commandCounter  metric.Int64Counter
	commandDuration metric.Float64Histogram
)

func init() {
	var err error
	commandCounter, err = meter.Int64Counter(
		"dynconf.command.count",
		metric.WithDescription("Number of dynconf commands run, by command and outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create command.count counter: %w", err))
	}

	commandDuration, err = meter.Float64Histogram(
		"dynconf.command.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds of a dynconf command"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create command.duration histogram: %w", err))
	}
}

// handleSignals returns a context that is cancelled when SIGINT or SIGTERM
// is received.
func handleSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// setupTelemetry configures slog and, when ENABLE_OTLP_TELEMETRY=true, the
// OpenTelemetry SDK. Logs go to stderr so command output on stdout stays
// machine readable. The returned func flushes telemetry and releases the
// signal handler.
func setupTelemetry(servicename string) (context.Context, func() error, error) {
	myInstanceID = idgen.InstanceID()

	doneCtx, doneCancel := handleSignals(context.Background())

	f := func() error {
		doneCancel()
		return nil
	}

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" || os.Getenv("DYNCONF_DEBUG") != "" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if os.Getenv("OTEL_SERVICE_NAME") != "" && os.Getenv("ENABLE_OTLP_TELEMETRY") == "true" {
		slog.SetDefault(slog.New(slogmulti.Fanout(
			slog.NewTextHandler(os.Stderr, opts),
			otelslog.NewHandler(servicename),
		)).With(
			slog.String("service", servicename),
			slog.Int64("instanceID", myInstanceID),
		))
		slog.Debug("OpenTelemetry exporting enabled")

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return doneCtx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
			slog.Warn("failed to start runtime metrics", slog.Any("error", err))
		}

		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", slog.Any("error", err))
		}

		f = func() error {
			defer doneCancel()
			slog.Debug("Shutting down OpenTelemetry SDK")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)).With(
			slog.String("service", servicename),
			slog.Int64("instanceID", myInstanceID),
		))
	}

	return doneCtx, f, nil
}

// withTelemetry runs fn under configured telemetry and records the
// command's outcome and duration.
func withTelemetry(command string, fn func(ctx context.Context) error) error {
	ctx, shutdown, err := setupTelemetry(serviceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			slog.Warn("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	start := time.Now()
	err = fn(ctx)
	recordCommand(ctx, command, time.Since(start), err)
	return err
}

func recordCommand(ctx context.Context, command string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	)
	commandCounter.Add(ctx, 1, attrs)
	commandDuration.Record(ctx, elapsed.Seconds(), attrs)
}

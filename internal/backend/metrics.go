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

package backend

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	operations   metric.Int64Counter
	cacheLookups metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/dynconf/internal/backend")

	var err error
	operations, err = meter.Int64Counter(
		"dynconf_backend_operations_total",
		metric.WithDescription("Total number of operations issued to a settings backend"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create operations counter: %w", err))
	}

	cacheLookups, err = meter.Int64Counter(
		"dynconf_cache_lookups_total",
		metric.WithDescription("Total number of settings cache lookups, by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cacheLookups counter: %w", err))
	}
}

func recordOperation(ctx context.Context, backend, op string) {
	operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("operation", op),
	))
}

func recordLookups(ctx context.Context, result string, n int) {
	if n == 0 {
		return
	}
	cacheLookups.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("result", result),
	))
}

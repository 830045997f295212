// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry-based observability for the server:
// distributed tracing exported over OTLP, and interaction metrics served on a
// Prometheus endpoint and optionally pushed over OTLP.
package telemetry

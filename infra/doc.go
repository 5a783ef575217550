// Package infra holds the adapters behind the dispatch core: MQTT transport,
// telemetry ingestion, metrics sinks, the emissions ledger and logging.
// Core packages never import infra.
package infra

// Package infra holds the adapters around the routing core: the SQLite
// store, the MQTT transport, the metrics sinks, Sentry reporting and the
// zerolog backend. Adapters depend on core interfaces, never the reverse.
package infra

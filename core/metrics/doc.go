// Package metrics defines interfaces and implementations for collecting
// dispatch metrics. Sinks like PromSink and InfluxSink record events such
// as order assignments, disruptions and incidents and can be combined with
// NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured. Optional recorder interfaces let a sink opt
// into the events it understands.
package metrics

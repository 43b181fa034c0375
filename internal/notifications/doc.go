// Package notifications delivers batch events to the operator.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. The batch depends
// only on the Service interface.
package notifications

/*
Package observability exposes session activity as Prometheus metrics.

Metrics are driven entirely by lifecycle hooks: install Metrics.Hooks on every
session (merged with any other hooks) and serve the registry with promhttp.
*/
package observability

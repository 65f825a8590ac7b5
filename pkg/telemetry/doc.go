// telemetry provides metrics for the phases of a deployment run.
// Supported metrics per phase includes:
// - started count(deploy_<phase>_started_total)
// - success/error count(deploy_<phase>_handled_total)
// - latency histogram(deploy_<phase>_handling_seconds_bucket)
//
// Metrics are kept in memory and optionally pushed to a Prometheus pushgateway
// when the run ends.
package telemetry

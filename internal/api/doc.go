// Package api hosts the HTTP server used in schedule mode. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/jobs lists the scheduled jobs and their last outcome.
//   - POST /v1/jobs/{name}/run starts a job outside its schedule.
package api

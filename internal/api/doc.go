// Package api hosts the status HTTP server for a running crawl. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/checkpoint for the live crawl cursor and run metadata.
package api

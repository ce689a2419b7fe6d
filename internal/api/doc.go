// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to start a background crawl, GET /v1/crawls/{job_id}
//     to follow it.
//   - POST /v1/pages to crawl a single URL.
//   - GET /v1/search and /v1/lucky to query the index.
//   - GET /v1/stats and POST /v1/snapshot/{save,load} for operations.
package api

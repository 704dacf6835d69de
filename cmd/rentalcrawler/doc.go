// Package main hosts the crawler entrypoint.
//
// The binary walks a fixed list of regions on a vacation rental site. For
// every region it reads the result page count, collects the listing links,
// loads each detail page once its listing API id has rendered, extracts the
// listing record, downloads all reviews in one call and writes both to the
// configured outputs (CSV, JSON blobs on local disk or GCS, Postgres). The
// checkpoint advances after each listing and each region, so the process can
// be killed at any point and restarted where it stopped.
//
// Operational notes:
//   - Configuration comes from an optional YAML file (-config) overridden by
//     CRAWLER_* environment variables, for example CRAWLER_CHECKPOINT_PATH or
//     CRAWLER_RETRY_MAX_ATTEMPTS (0 retries forever).
//   - SIGINT/SIGTERM finish the listing being written, persist the checkpoint
//     and exit 0. A structural fault exits 2 unless
//     crawl.on_structural_fault is skip_region.
//   - With server.enabled the process serves /healthz, /readyz, /metrics and
//     /v1/checkpoint while crawling.
//   - Run locally: go run ./cmd/rentalcrawler -config config.yaml
package main

// Package config loads and validates application configuration from
// GATEHOUSE_* environment variables. Configuration covers the HTTP
// servers, PostgreSQL, optional Redis, the upstream OIDC provider, session
// token signing, and observability settings.
package config

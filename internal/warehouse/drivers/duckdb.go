//go:build duckdb

// The DuckDB driver needs CGO, so it stays behind a build tag and the
// default builds remain CGO-free. Enable with: CGO_ENABLED=1 go build -tags duckdb
package drivers

import (
	_ "github.com/marcboeker/go-duckdb"
)

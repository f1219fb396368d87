package drivers

import (
	// Registers the CGO-free "sqlite" driver for database/sql.
	_ "modernc.org/sqlite"
)

// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete backend to run, which in
// turn register their factories with the storage package. Importing it makes
// the "postgres" and "sqlite" storage kinds available at runtime.
package all

import (
	_ "pimdb/internal/storage/postgres"
	_ "pimdb/internal/storage/sqlite"
)

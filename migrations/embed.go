// Package migrations embebe los archivos SQL del esquema para poder
// aplicarlos desde el binario.
package migrations

import "embed"

//go:embed postgres/*.sql
var FS embed.FS

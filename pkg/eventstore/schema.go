package eventstore

import "embed"

//go:embed schema/eventstore-schema.sql
var schemaFiles embed.FS

// Schema exposes the domain_events DDL so the application can apply it
// ahead of every module's own schema.
func Schema() *embed.FS {
	return &schemaFiles
}

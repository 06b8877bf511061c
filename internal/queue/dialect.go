package queue

import (
	_ "embed"
	"strings"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_mysql.sql
var mysqlSchema string

// dialect isolates the little SQL that differs between the supported backends.
type dialect interface {
	name() string
	schemaStatements() []string
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) schemaStatements() []string { return splitStatements(sqliteSchema) }

type mysqlDialect struct{}

func (mysqlDialect) name() string { return "mysql" }

func (mysqlDialect) schemaStatements() []string { return splitStatements(mysqlSchema) }

// splitStatements breaks a schema file into individual statements so neither
// driver needs multi-statement support.
func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		lines := strings.Split(stmt, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			kept = append(kept, line)
		}
		if trimmed := strings.TrimSpace(strings.Join(kept, "\n")); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package ddl

import (
	"fmt"
	"strings"

	gddl "communitysolar/internal/ddl"
	"communitysolar/internal/schema"
)

// BuildCreateTableSQL returns a T-SQL script that creates the table if it
// does not already exist. T-SQL has no CREATE TABLE IF NOT EXISTS, so the
// statement is wrapped in an OBJECT_ID guard:
//
//	IF OBJECT_ID(N'[dbo].[table]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [dbo].[table] (
//	    [col1] TYPE [NOT NULL] [DEFAULT expr]
//	  );
//	END;
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	cols, err := gddl.RenderColumns(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}
	fqn := gddl.QuoteFQN(t.FQN, QuoteIdent)
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
		strings.ReplaceAll(fqn, "'", "''"),
		fqn,
		strings.Join(cols, ",\n    "),
	), nil
}

// CreateTableSQL maps s and renders it.
func CreateTableSQL(s schema.Schema) (string, error) {
	return BuildCreateTableSQL(gddl.FromSchema(s, Dialect))
}

// QuoteIdent quotes a single identifier segment using bracket syntax,
// escaping closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func QuoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

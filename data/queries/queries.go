package queries

import (
	"embed"
	"fmt"
)

// every query lives in its own file and is compiled into the binary
//
//go:embed delete/*.sql insert/*.sql schema/*.sql select/*.sql update/*.sql
var Files embed.FS

type DeleteQueries struct {
	DailyClosesBySourceId string
}

type InsertQueries struct {
	Metadata string
}

type SchemaQueries struct {
	CreateTables string
}

type SelectQueries struct {
	DailyClosesBySymbol string
	MetadataBySymbol    string
}

type UpdateQueries struct {
	Metadata string
}

type QueryHelperStruct struct {
	Delete DeleteQueries
	Insert InsertQueries
	Schema SchemaQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Delete: DeleteQueries{
		DailyClosesBySourceId: "delete/daily_closes_by_source_id.sql",
	},
	Insert: InsertQueries{
		Metadata: "insert/metadata.sql",
	},
	Schema: SchemaQueries{
		CreateTables: "schema/create_tables.sql",
	},
	Select: SelectQueries{
		DailyClosesBySymbol: "select/daily_closes_by_symbol.sql",
		MetadataBySymbol:    "select/metadata_by_symbol.sql",
	},
	Update: UpdateQueries{
		Metadata: "update/metadata.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}

package engine_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/schemahop/internal/engine"
	"github.com/temirov/schemahop/internal/migration"
)

func openMemoryDatabase(testInstance *testing.T) *sql.DB {
	testInstance.Helper()
	database, openError := engine.OpenDatabase(engine.DriverSQLite, ":memory:")
	require.NoError(testInstance, openError)
	database.SetMaxOpenConns(1)
	testInstance.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func TestDatabaseAppliedReaderCustomColumns(testInstance *testing.T) {
	database := openMemoryDatabase(testInstance)
	_, createError := database.Exec("CREATE TABLE schema_history (component TEXT, revision TEXT)")
	require.NoError(testInstance, createError)
	_, insertError := database.Exec("INSERT INTO schema_history VALUES ('blog', '0001_initial'), ('blog', '0002_add_author'), ('blog', '0001_initial')")
	require.NoError(testInstance, insertError)

	reader, readerError := engine.NewDatabaseAppliedReader(database, engine.AppliedConfiguration{
		Table:      "schema_history",
		AppColumn:  "component",
		NameColumn: "revision",
	})
	require.NoError(testInstance, readerError)

	applied, readError := reader.ReadApplied(context.Background())
	require.NoError(testInstance, readError)
	require.Equal(testInstance, []migration.NodeKey{
		{AppLabel: "blog", MigrationName: "0001_initial"},
		{AppLabel: "blog", MigrationName: "0002_add_author"},
	}, applied.Sorted())
}

func TestNewDatabaseAppliedReaderRejectsUnsafeIdentifiers(testInstance *testing.T) {
	database := openMemoryDatabase(testInstance)

	testCases := []struct {
		name          string
		configuration engine.AppliedConfiguration
	}{
		{name: "table_injection", configuration: engine.AppliedConfiguration{Table: "django_migrations; DROP TABLE users", AppColumn: "app", NameColumn: "name"}},
		{name: "empty_column", configuration: engine.AppliedConfiguration{Table: "django_migrations", AppColumn: "", NameColumn: "name"}},
		{name: "quoted_column", configuration: engine.AppliedConfiguration{Table: "django_migrations", AppColumn: "app", NameColumn: "\"name\""}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, readerError := engine.NewDatabaseAppliedReader(database, testCase.configuration)
			require.Error(testInstance, readerError)
		})
	}

	_, schemaQualifiedError := engine.NewDatabaseAppliedReader(database, engine.AppliedConfiguration{Table: "public.django_migrations", AppColumn: "app", NameColumn: "name"})
	require.NoError(testInstance, schemaQualifiedError)
}

func TestOpenDatabaseValidation(testInstance *testing.T) {
	_, driverError := engine.OpenDatabase("oracle", "dsn")
	require.Error(testInstance, driverError)

	_, dsnError := engine.OpenDatabase(engine.DriverPostgres, "")
	require.ErrorIs(testInstance, dsnError, engine.ErrDSNNotConfigured)
}

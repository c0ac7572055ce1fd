package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/temirov/schemahop/internal/migration"
)

const (
	// DriverPostgres selects the lib/pq driver.
	DriverPostgres = "postgres"
	// DriverMySQL selects the go-sql-driver/mysql driver.
	DriverMySQL = "mysql"
	// DriverSQLite selects the mattn/go-sqlite3 driver.
	DriverSQLite = "sqlite3"
)

const (
	appliedQueryTemplate              = "SELECT %s, %s FROM %s"
	unsupportedDriverErrorTemplate    = "unsupported database driver %q"
	invalidIdentifierErrorTemplate    = "invalid SQL identifier %q for %s"
	openDatabaseErrorTemplate         = "unable to open %s database: %w"
	pingDatabaseErrorTemplate         = "unable to reach %s database: %w"
	queryAppliedErrorTemplate         = "unable to query applied migrations: %w"
	scanAppliedErrorTemplate          = "unable to read applied migration row: %w"
	tableIdentifierLabelConstant      = "table"
	appColumnIdentifierLabelConstant  = "app column"
	nameColumnIdentifierLabelConstant = "name column"
)

var sqlIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var supportedDrivers = map[string]struct{}{
	DriverPostgres: {},
	DriverMySQL:    {},
	DriverSQLite:   {},
}

// ErrDatabaseNotConfigured indicates that a reader was created without a database handle.
var ErrDatabaseNotConfigured = errors.New("applied migration database not configured")

// ErrDSNNotConfigured indicates that the database source was selected without a DSN.
var ErrDSNNotConfigured = errors.New("applied migration database DSN not configured")

// AppliedReader reports the migrations recorded as applied in the schema store.
type AppliedReader interface {
	ReadApplied(executionContext context.Context) (migration.KeySet, error)
}

// DatabaseOpener opens a database handle for a driver and DSN.
type DatabaseOpener func(driverName string, dataSourceName string) (*sql.DB, error)

// OpenDatabase opens and pings a database using one of the registered drivers.
func OpenDatabase(driverName string, dataSourceName string) (*sql.DB, error) {
	if _, supported := supportedDrivers[driverName]; !supported {
		return nil, fmt.Errorf(unsupportedDriverErrorTemplate, driverName)
	}
	if len(dataSourceName) == 0 {
		return nil, ErrDSNNotConfigured
	}
	database, openError := sql.Open(driverName, dataSourceName)
	if openError != nil {
		return nil, fmt.Errorf(openDatabaseErrorTemplate, driverName, openError)
	}
	if pingError := database.Ping(); pingError != nil {
		_ = database.Close()
		return nil, fmt.Errorf(pingDatabaseErrorTemplate, driverName, pingError)
	}
	return database, nil
}

// DatabaseAppliedReader reads (app, name) rows from the engine's bookkeeping table.
type DatabaseAppliedReader struct {
	database *sql.DB
	query    string
}

// NewDatabaseAppliedReader validates the configured identifiers and prepares the query.
func NewDatabaseAppliedReader(database *sql.DB, configuration AppliedConfiguration) (*DatabaseAppliedReader, error) {
	if database == nil {
		return nil, ErrDatabaseNotConfigured
	}
	identifiers := []struct {
		value string
		label string
	}{
		{value: configuration.Table, label: tableIdentifierLabelConstant},
		{value: configuration.AppColumn, label: appColumnIdentifierLabelConstant},
		{value: configuration.NameColumn, label: nameColumnIdentifierLabelConstant},
	}
	for _, identifier := range identifiers {
		if !sqlIdentifierPattern.MatchString(identifier.value) {
			return nil, fmt.Errorf(invalidIdentifierErrorTemplate, identifier.value, identifier.label)
		}
	}
	return &DatabaseAppliedReader{
		database: database,
		query:    fmt.Sprintf(appliedQueryTemplate, configuration.AppColumn, configuration.NameColumn, configuration.Table),
	}, nil
}

// ReadApplied returns every recorded (app, name) pair.
func (reader *DatabaseAppliedReader) ReadApplied(executionContext context.Context) (migration.KeySet, error) {
	rows, queryError := reader.database.QueryContext(executionContext, reader.query)
	if queryError != nil {
		return nil, fmt.Errorf(queryAppliedErrorTemplate, queryError)
	}
	defer rows.Close()

	applied := make(migration.KeySet)
	for rows.Next() {
		var nodeKey migration.NodeKey
		if scanError := rows.Scan(&nodeKey.AppLabel, &nodeKey.MigrationName); scanError != nil {
			return nil, fmt.Errorf(scanAppliedErrorTemplate, scanError)
		}
		applied.Add(nodeKey)
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, fmt.Errorf(queryAppliedErrorTemplate, rowsError)
	}
	return applied, nil
}

package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct configures a database that is either a local sqlite file or a remote
// libsql server. `Url` takes precedence over `File`.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Struct) Enabled() bool {
	return config.File != "" || config.Url != ""
}

func (config Struct) open() (*sql.DB, error) {
	if config.Url != "" {
		link, err := url.Parse(config.Url)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		if config.AuthToken != "" {
			query := link.Query()
			query.Set("authToken", config.AuthToken)
			link.RawQuery = query.Encode()
		}
		return sql.Open("libsql", link.String())
	}

	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if config.File == ":memory:" {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, err
		}
		// every connection to :memory: is a different database
		db.SetMaxOpenConns(1)
		return db, nil
	}

	err := os.MkdirAll(filepath.Dir(config.File), 0700)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB opens the database and applies `schema`, which must be idempotent.
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	db, err := config.open()
	if err != nil {
		return nil, err
	}
	if schema == "" {
		return db, nil
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

package db

import (
	"bytes"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"text/template"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed schema/*.sql
var embedFiles embed.FS

// Dialect holds the column definitions that differ between drivers.
type Dialect struct {
	PrimaryKey string
	Decimal    string
	Text       string
}

var dialects = map[string]Dialect{
	"mysql": {
		PrimaryKey: "id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY",
		Decimal:    "DECIMAL(64,8)",
		Text:       "TEXT",
	},
	"sqlite": {
		PrimaryKey: "id INTEGER PRIMARY KEY AUTOINCREMENT",
		// TEXT keeps decimals exact, NUMERIC affinity would turn them into floats
		Decimal: "TEXT",
		Text:    "BLOB",
	},
}

func withInstance(db *sql.DB, driver string) (database.Driver, error) {
	switch driver {
	case "mysql":
		return mysql.WithInstance(db, &mysql.Config{})
	case "sqlite":
		return sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// Migrate runs the embedded schema against db, rendered for driver.
func Migrate(db *sql.DB, driver string) error {
	dialect, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("unsupported db driver %q", driver)
	}

	d, err := iofs.New(&templateFS{
		data: dialect,
		FS:   embedFiles,
	}, "schema")
	if err != nil {
		return err
	}

	instance, err := withInstance(db, driver)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", d, driver, instance)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

type templateFile struct {
	io.ReadCloser
	info *fileInfoWithSize
}

func (t *templateFile) Stat() (fs.FileInfo, error) {
	return t.info, nil
}

// templateFS renders every schema file as a text/template before handing it
// to the migration source.
type templateFS struct {
	data any
	embed.FS
}

func (t *templateFS) Open(name string) (fs.File, error) {
	file, err := t.FS.Open(name)
	if err != nil {
		return nil, err
	}

	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return t.FS.Open(name)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, t.data); err != nil {
		return nil, err
	}

	return &templateFile{
		ReadCloser: io.NopCloser(bytes.NewReader(buf.Bytes())),
		info:       &fileInfoWithSize{info, int64(buf.Len())},
	}, nil
}

type fileInfoWithSize struct {
	fs.FileInfo
	size int64
}

func (f *fileInfoWithSize) Size() int64 {
	return f.size
}

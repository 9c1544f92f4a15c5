package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/router-for-me/IPGenerator/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pingTimeout = 5 * time.Second

// sqlitePragmas are applied to every pooled SQLite connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// Options selects the database and the zone that defines a calendar day.
type Options struct {
	DSN      string // SQLite path, file: DSN, sqlite:// URL, or PostgreSQL URL/keyword DSN.
	TimeZone string // IANA zone; empty keeps the process zone.
}

// Open connects to the configured database. A non-empty TimeZone becomes the
// process zone, so usage day boundaries and PostgreSQL sessions agree.
func Open(opts Options) (*gorm.DB, error) {
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, errors.New("db: empty dsn")
	}
	loc, errZone := applyTimeZone(opts.TimeZone)
	if errZone != nil {
		return nil, errZone
	}
	if isPostgresDSN(dsn) {
		return openPostgres(dsn, loc)
	}
	return openSQLite(dsn)
}

// Migrate creates or updates the tables used by the service.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Proxy{},
		&models.UsageLog{},
		&models.UploadHistory{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}

// applyTimeZone loads name and installs it as time.Local. It returns nil when
// no zone is configured.
func applyTimeZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	loc, errLoad := time.LoadLocation(name)
	if errLoad != nil {
		return nil, fmt.Errorf("db: load time zone %q: %w", name, errLoad)
	}
	time.Local = loc
	return loc, nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return true
	}
	for _, keyword := range []string{"host=", "dbname=", "sslmode="} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(log.StandardLogger(), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// openPostgres opens PostgreSQL through pgx. With a zone configured the
// session runs in it and timestamps scan into it.
func openPostgres(dsn string, loc *time.Location) (*gorm.DB, error) {
	cfg, errParse := pgx.ParseConfig(dsn)
	if errParse != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", errParse)
	}
	var options []stdlib.OptionOpenDB
	if loc != nil {
		cfg.RuntimeParams["timezone"] = loc.String()
		options = append(options, stdlib.OptionAfterConnect(func(_ context.Context, conn *pgx.Conn) error {
			conn.TypeMap().RegisterType(&pgtype.Type{Name: "timestamp", OID: pgtype.TimestampOID, Codec: &pgtype.TimestampCodec{ScanLocation: loc}})
			conn.TypeMap().RegisterType(&pgtype.Type{Name: "timestamptz", OID: pgtype.TimestamptzOID, Codec: &pgtype.TimestamptzCodec{ScanLocation: loc}})
			return nil
		}))
	}
	sqlDB := stdlib.OpenDB(*cfg, options...)
	conn, errOpen := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if errOpen != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: open postgres: %w", errOpen)
	}
	return finishOpen(conn, sqlDB, 25)
}

// openSQLite opens a SQLite database, creating the parent directory of a
// file path when needed.
func openSQLite(dsn string) (*gorm.DB, error) {
	path, normalized := sqliteDSN(dsn)
	if path != "" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
				return nil, fmt.Errorf("db: create sqlite dir: %w", errMkdir)
			}
		}
	}
	conn, errOpen := gorm.Open(sqlite.Open(normalized), gormConfig())
	if errOpen != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", errDB)
	}
	return finishOpen(conn, sqlDB, 8)
}

// sqliteDSN turns the configured value into a file: DSN carrying the pragma
// parameters. path is the on-disk file, empty for in-memory databases.
func sqliteDSN(dsn string) (path string, normalized string) {
	body := dsn
	lower := strings.ToLower(dsn)
	for _, prefix := range []string{"sqlite3://", "sqlite://", "file:"} {
		if strings.HasPrefix(lower, prefix) {
			body = dsn[len(prefix):]
			break
		}
	}
	path, query, _ := strings.Cut(body, "?")
	values, errQuery := url.ParseQuery(query)
	if errQuery != nil {
		values = url.Values{}
	}
	present := make(map[string]bool)
	for _, p := range values["_pragma"] {
		name, _, _ := strings.Cut(p, "(")
		present[strings.ToLower(strings.TrimSpace(name))] = true
	}
	for _, p := range sqlitePragmas {
		name, _, _ := strings.Cut(p, "(")
		if !present[name] {
			values.Add("_pragma", p)
		}
	}
	normalized = "file:" + path + "?" + values.Encode()
	if path == ":memory:" || values.Get("mode") == "memory" {
		path = ""
	}
	return path, normalized
}

func finishOpen(conn *gorm.DB, sqlDB *sql.DB, maxConns int) (*gorm.DB, error) {
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping: %w", errPing)
	}
	return conn, nil
}

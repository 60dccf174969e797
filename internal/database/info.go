package database

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectDuckDB   Dialect = "duckdb"
)

// Info is the connection description a caller sends with every request.
type Info struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
	Schema   string `json:"schema,omitempty"`
}

// UnmarshalJSON accepts databaseType as an alias for type.
func (i *Info) UnmarshalJSON(data []byte) error {
	type plain Info
	var wire struct {
		plain
		DatabaseType string `json:"databaseType"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*i = Info(wire.plain)
	if i.Type == "" {
		i.Type = wire.DatabaseType
	}
	return nil
}

func ParseDialect(raw string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "duckdb":
		return DialectDuckDB, nil
	default:
		return "", fmt.Errorf("unsupported database type %q", raw)
	}
}

func (i Info) Dialect() (Dialect, error) {
	return ParseDialect(i.Type)
}

func (i Info) Validate() error {
	dialect, err := i.Dialect()
	if err != nil {
		return err
	}
	switch dialect {
	case DialectPostgres, DialectMySQL:
		if strings.TrimSpace(i.Host) == "" {
			return fmt.Errorf("host is required for %s", dialect)
		}
		if strings.TrimSpace(i.Database) == "" {
			return fmt.Errorf("database is required for %s", dialect)
		}
		if i.Port < 0 || i.Port > 65535 {
			return fmt.Errorf("port %d out of range", i.Port)
		}
	case DialectSQLite:
		if strings.TrimSpace(i.Database) == "" {
			return fmt.Errorf("database file path is required for sqlite")
		}
	}
	return nil
}

// Fingerprint identifies a connection target without its credentials.
func (i Info) Fingerprint() string {
	dialect, err := i.Dialect()
	if err != nil {
		dialect = Dialect(i.Type)
	}
	return strings.Join([]string{
		string(dialect),
		strings.ToLower(strings.TrimSpace(i.Host)),
		strconv.Itoa(i.Port),
		i.Database,
		i.Schema,
		i.Username,
	}, "|")
}

// DefaultSchema is the schema unqualified table names resolve against.
func (i Info) DefaultSchema() string {
	if i.Schema != "" {
		return i.Schema
	}
	dialect, _ := i.Dialect()
	switch dialect {
	case DialectPostgres:
		return "public"
	case DialectMySQL:
		return i.Database
	case DialectDuckDB, DialectSQLite:
		return "main"
	}
	return ""
}

func driverAndDSN(info Info, connectTimeout time.Duration) (string, string, error) {
	dialect, err := info.Dialect()
	if err != nil {
		return "", "", err
	}
	switch dialect {
	case DialectPostgres:
		port := info.Port
		if port == 0 {
			port = 5432
		}
		dsn := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(info.Username, info.Password),
			Host:   net.JoinHostPort(info.Host, strconv.Itoa(port)),
			Path:   "/" + info.Database,
		}
		query := url.Values{}
		query.Set("application_name", "sqlpilot")
		query.Set("options", "-c default_transaction_read_only=on")
		if connectTimeout > 0 {
			query.Set("connect_timeout", strconv.Itoa(int(connectTimeout.Seconds())))
		}
		if info.Schema != "" {
			query.Set("search_path", info.Schema)
		}
		dsn.RawQuery = query.Encode()
		return "pgx", dsn.String(), nil
	case DialectMySQL:
		port := info.Port
		if port == 0 {
			port = 3306
		}
		cfg := mysql.NewConfig()
		cfg.User = info.Username
		cfg.Passwd = info.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(info.Host, strconv.Itoa(port))
		cfg.DBName = info.Database
		cfg.ParseTime = true
		cfg.Timeout = connectTimeout
		return "mysql", cfg.FormatDSN(), nil
	case DialectSQLite:
		return "sqlite", "file:" + info.Database + "?_pragma=query_only(1)&_pragma=busy_timeout(5000)", nil
	case DialectDuckDB:
		if info.Database == "" || info.Database == ":memory:" {
			return "duckdb", "", nil
		}
		return "duckdb", info.Database + "?access_mode=READ_ONLY", nil
	}
	return "", "", fmt.Errorf("unsupported database type %q", info.Type)
}

package remotedb

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	go_ora "github.com/sijms/go-ora/v2"

	"github.com/quarrydb/quarry/pkg/log"
)

// defaultPort is the Oracle listener port assumed when the TNS string
// does not carry one
const defaultPort = 1521

// Oracle runs queries against Oracle databases through the go-ora
// driver. Each Run opens a dedicated connection, executes exactly one
// statement, fetches the full result set and closes the connection.
type Oracle struct {
	logger zerolog.Logger
}

// NewOracle creates the production connector
func NewOracle() *Oracle {
	return &Oracle{logger: log.WithComponent("remotedb")}
}

// Run executes queryText and fetches every row. Connection and
// authentication failures are wrapped in ConnectError; statement
// failures are returned as the driver produced them.
func (o *Oracle) Run(ctx context.Context, creds Credentials, queryText string) (*ResultSet, error) {
	db, err := sql.Open("oracle", connString(creds))
	if err != nil {
		return nil, &ConnectError{Err: err}
	}
	defer db.Close()

	// One statement per connection; pooling would hold remote sessions
	// open long after the query retires.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, &ConnectError{Err: err}
	}
	o.logger.Debug().Str("db_username", creds.Username).Msg("Connected to remote database")

	rows, err := db.QueryContext(ctx, queryText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	o.logger.Debug().
		Int("rows", len(rs.Rows)).
		Int("columns", len(rs.Columns)).
		Msg("Result set fetched")
	return rs, nil
}

// connString builds a go-ora connection URL from the stored TNS value.
// A value starting with "(" is a full TNS descriptor; anything else is
// treated as EZConnect (host[:port][/service]).
func connString(creds Credentials) string {
	tns := strings.TrimSpace(creds.TNS)
	if strings.HasPrefix(tns, "(") {
		return go_ora.BuildJDBC(creds.Username, creds.Password, tns, nil)
	}
	host, port, service := parseEZConnect(tns)
	return go_ora.BuildUrl(host, port, service, creds.Username, creds.Password, nil)
}

func parseEZConnect(tns string) (host string, port int, service string) {
	host = tns
	if i := strings.Index(host, "/"); i >= 0 {
		service = host[i+1:]
		host = host[:i]
	}
	port = defaultPort
	if i := strings.LastIndex(host, ":"); i >= 0 {
		if p, err := strconv.Atoi(host[i+1:]); err == nil && p > 0 {
			port = p
			host = host[:i]
		}
	}
	return host, port, service
}

// normalize maps driver-specific scan types onto the small set of Go
// types the export writers understand
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

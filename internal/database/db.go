package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
)

// PoolConfig bounds the shared connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Loc is the zone DATETIME values are parsed in.  It must match the
	// session time_zone applied to leased connections (Session.Location).
	// Nil means UTC.
	Loc *time.Location
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string, pc PoolConfig) (*sql.DB, error) {
	cfg := driverConfig(user, pass, host, port, name, pc)

	// A fixed-offset Loc has no IANA name, so it cannot travel through a DSN
	// string; hand the parsed config to the driver directly.
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)

	// Pool settings
	db.SetMaxOpenConns(pc.MaxOpenConns)
	db.SetMaxIdleConns(pc.MaxIdleConns)
	db.SetConnMaxLifetime(pc.ConnMaxLifetime)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func driverConfig(user, pass, host, port, name string, pc PoolConfig) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.DBName = name
	// parseTime=true -> DATETIME -> time.Time in the session's zone
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if pc.Loc != nil {
		cfg.Loc = pc.Loc
	}
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg
}

// IsDuplicateKey reports whether err is MySQL's ER_DUP_ENTRY (1062).
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

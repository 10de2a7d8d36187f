package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection before returning.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	dsnCfg := mysql.NewConfig()
	dsnCfg.User = user
	dsnCfg.Passwd = pass
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = host + ":" + port
	dsnCfg.DBName = name
	dsnCfg.ParseTime = true // DATETIME columns scan into time.Time
	dsnCfg.Loc = time.UTC
	dsnCfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	// One bounded pool for the whole app.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

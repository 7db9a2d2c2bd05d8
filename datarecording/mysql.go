package datarecording

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/xid"
)

// NewMySQL creates a DataRecorder in a fresh database on the MySQL server of
// the DSN. The database name in the DSN, if any, is replaced by a unique
// one, so that runs never share tables.
func NewMySQL(dsn string) (DataRecorder, error) {
	serverDSN, recordingDSN, dbName, err := mysqlDSNs(dsn)
	if err != nil {
		return nil, err
	}

	server, err := sql.Open("mysql", serverDSN)
	if err != nil {
		return nil, err
	}
	defer server.Close()

	_, err = server.Exec("CREATE DATABASE " + dbName)
	if err != nil {
		return nil, fmt.Errorf("creating database %s: %w", dbName, err)
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", dbName)

	db, err := sql.Open("mysql", recordingDSN)
	if err != nil {
		return nil, err
	}

	return NewWithDB(db), nil
}

func mysqlDSNs(dsn string) (serverDSN, recordingDSN, dbName string, err error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", "", "", err
	}

	dbName = "vmsim_data_recording_" + xid.New().String()

	cfg.DBName = ""
	serverDSN = cfg.FormatDSN()

	cfg.DBName = dbName
	recordingDSN = cfg.FormatDSN()

	return serverDSN, recordingDSN, dbName, nil
}

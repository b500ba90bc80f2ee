package data

import (
	"errors"
	"net"
	"os"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
)

var errNoDSN = errors.New("MYSQL_DSN is not set and MYSQL_HOST/MYSQL_USER/MYSQL_DATABASE are incomplete")

// MySQLDSNFromEnv reads MYSQL_DSN, or assembles a DSN from MYSQL_HOST,
// MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD and MYSQL_DATABASE.
func MySQLDSNFromEnv() (string, error) {
	if dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN")); dsn != "" {
		return dsn, nil
	}

	host := strings.TrimSpace(os.Getenv("MYSQL_HOST"))
	user := strings.TrimSpace(os.Getenv("MYSQL_USER"))
	database := strings.TrimSpace(os.Getenv("MYSQL_DATABASE"))
	if host == "" || user == "" || database == "" {
		return "", errNoDSN
	}
	port := strings.TrimSpace(os.Getenv("MYSQL_PORT"))
	if port == "" {
		port = "3306"
	}

	cfg := gomysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.User = user
	cfg.Passwd = os.Getenv("MYSQL_PASSWORD")
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

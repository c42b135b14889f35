package database

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/Vonix-Network/VonixCore-sub003/internal/config"
)

// BuildConnString renders the pgxpool connection string from the database
// section of the daemon config. Pool sizing rides along as pool_* query
// parameters so pgxpool.ParseConfig picks it up without further plumbing.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(cfg.MaxConns))
	}
	if cfg.MinConns > 0 {
		q.Set("pool_min_conns", strconv.Itoa(cfg.MinConns))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

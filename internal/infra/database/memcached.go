package database

import (
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
)

// NewMemcached accepts a comma separated server list.
func NewMemcached(servers string) (*memcache.Client, error) {
	mc := memcache.New(strings.Split(servers, ",")...)
	mc.Timeout = 500 * time.Millisecond

	if err := mc.Ping(); err != nil {
		return nil, errors.Wrapf(err, "memcached ping %s", servers)
	}
	return mc, nil
}

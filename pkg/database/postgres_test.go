package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/benglish/academic-core/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "benglish",
		Password: "it's secret",
		Name:     "benglish_prod",
		SSLMode:  "disable",
	})
	assert.Equal(t, `host=db port=5432 user=benglish password='it\'s secret' dbname=benglish_prod sslmode=disable application_name=academic-core`, dsn)
}

func TestDSNSkipsEmptyValues(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "localhost", Port: 5432, Name: "x"})
	assert.Equal(t, "host=localhost port=5432 dbname=x application_name=academic-core", dsn)
}

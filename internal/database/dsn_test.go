package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		Driver:   "postgres",
		Host:     "db.internal",
		Port:     5433,
		Name:     "listenme",
		User:     "app",
		Password: "s3cret",
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5433 user=app dbname=listenme password=s3cret sslmode=disable", dsn)
}

func TestBuildPostgresDSNDefaultsAndOverrides(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		Driver:  "postgres",
		Name:    "listenme",
		User:    "app",
		Options: map[string]string{"sslmode": "require"},
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=localhost")
	require.Contains(t, dsn, "port=5432")
	require.Contains(t, dsn, "sslmode=require")

	_, err = buildPostgresDSN(Config{Driver: "postgres"})
	require.Error(t, err)
}

func TestBuildPostgresDSNPassthrough(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://app@db/listenme"})
	require.NoError(t, err)
	require.Equal(t, "postgres://app@db/listenme", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		Driver:   "mysql",
		Host:     "db.internal",
		Port:     3307,
		Name:     "listenme",
		User:     "app",
		Password: "s3cret",
	})
	require.NoError(t, err)
	require.Equal(t, "app:s3cret@tcp(db.internal:3307)/listenme?charset=utf8mb4&loc=Local&parseTime=True", dsn)
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Driver: "mysql", User: "app"})
	require.Error(t, err)
}

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Driver = DriverPostgres
		c.Host = "localhost"
		c.Username = "ledger"
		c.Password = "secret"
		c.Database = "credits"
		return c
	}

	t.Run("should accept a complete postgres config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("should require postgres credentials", func(t *testing.T) {
		c := valid()
		c.Password = ""
		assert.EqualError(t, c.Validate(), "database password is required")
	})

	t.Run("should only need a path for sqlite", func(t *testing.T) {
		c := DefaultConfig()
		c.Driver = DriverSQLite
		c.SQLitePath = "ledger.db"
		assert.NoError(t, c.Validate())
		assert.Equal(t, "ledger.db", c.DSN())
	})

	t.Run("should accept the memory driver without connection settings", func(t *testing.T) {
		c := &Config{Driver: DriverMemory}
		assert.NoError(t, c.Validate())
	})

	t.Run("should reject unknown drivers", func(t *testing.T) {
		c := valid()
		c.Driver = "mysql"
		assert.EqualError(t, c.Validate(), "unsupported database driver: mysql")
	})

	t.Run("should detect in-memory sqlite", func(t *testing.T) {
		c := &Config{Driver: DriverSQLite, SQLitePath: ":memory:"}
		assert.True(t, c.IsInMemorySQLite())
		c.SQLitePath = "file:x?mode=memory&cache=shared"
		assert.True(t, c.IsInMemorySQLite())
		c.SQLitePath = "ledger.db"
		assert.False(t, c.IsInMemorySQLite())
	})

	t.Run("should build the postgres DSN", func(t *testing.T) {
		c := valid()
		assert.Equal(t, "host=localhost port=5432 user=ledger password=secret dbname=credits sslmode=disable application_name=credit-ledger", c.DSN())
	})

	t.Run("should quote values libpq would split", func(t *testing.T) {
		c := valid()
		c.ApplicationName = ""
		c.Password = `it's a secret`
		assert.Equal(t, `host=localhost port=5432 user=ledger password='it\'s a secret' dbname=credits sslmode=disable`, c.DSN())
	})

	t.Run("should mask the password for logs", func(t *testing.T) {
		c := valid()
		assert.NotContains(t, c.RedactedDSN(), "secret")
		assert.Contains(t, c.RedactedDSN(), "password=xxxxx")
	})

	t.Run("should report every problem at once", func(t *testing.T) {
		c := valid()
		c.Host = ""
		c.MaxOpenConns = 0
		err := c.Validate()
		assert.ErrorContains(t, err, "database host is required")
		assert.ErrorContains(t, err, "max open connections must be positive, got: 0")
	})
}

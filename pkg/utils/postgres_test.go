package utils

import "testing"

func TestPostgresPoolDefaults(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 8}.withDefaults()
	if c.MaxIdleConns != 8 {
		t.Fatalf("expected idle conns to follow open conns, got %d", c.MaxIdleConns)
	}
	if c.PingTimeout <= 0 || c.ConnMaxLifetime <= 0 || c.ConnMaxIdleTime <= 0 {
		t.Fatalf("expected defaults, got %+v", c)
	}
}

func TestPostgresPoolDefaults_IdleCappedByOpen(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 4, MaxIdleConns: 10}.withDefaults()
	if c.MaxIdleConns != 4 {
		t.Fatalf("expected idle conns capped at 4, got %d", c.MaxIdleConns)
	}
	if c := (PostgresPoolConfig{}).withDefaults(); c.MaxOpenConns != 20 {
		t.Fatalf("expected default of 20 open conns, got %d", c.MaxOpenConns)
	}
}

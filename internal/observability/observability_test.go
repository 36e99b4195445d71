package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLoggerAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	ctx := WithRequestID(context.Background(), "req-123")
	log.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v body=%s", err, buf.String())
	}
	if rec["request_id"] != "req-123" {
		t.Fatalf("missing request_id: %v", rec)
	}
}

func TestLoggerLevelByEnv(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered outside dev: %s", buf.String())
	}

	newLogger(&buf, "dev").Debug("shown")
	if buf.Len() == 0 {
		t.Fatalf("debug should be logged in dev")
	}
}

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: &pgconn.PgError{Code: "23505"}, want: "unique_violation"},
		{err: &pgconn.PgError{Code: "23503"}, want: "foreign_key_violation"},
		{err: &pgconn.PgError{Code: "42P01"}, want: "pg_42P01"},
		{err: context.DeadlineExceeded, want: "timeout"},
		{err: errors.New("connection refused"), want: "connection"},
		{err: errors.New("weird"), want: "unknown"},
	}

	for _, tt := range tests {
		if got := classifyDBErr(tt.err); got != tt.want {
			t.Fatalf("classify(%v): got %q want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveDBIgnoresNoRows(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("users.load", func() error { return pgx.ErrNoRows })
	_ = p.ObserveDB("users.load", func() error { return &pgconn.PgError{Code: "23505"} })

	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.load", "unique_violation")); got != 1 {
		t.Fatalf("unique violations: got %v want 1", got)
	}
	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 1 {
		t.Fatalf("no_rows must not be counted as an error, series=%d", got)
	}
}

func TestNilPromIsSafe(t *testing.T) {
	var p *Prom

	p.IncAuthFailure("expired")
	p.IncAccessDenied("/x")
	p.IncRateLimited("/x")

	called := false
	if err := p.ObserveDB("op", func() error { called = true; return nil }); err != nil || !called {
		t.Fatalf("nil prom should just run fn")
	}
}

package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"login-service/internal/config"
	"login-service/internal/util"
)

const createSecurityEventsTable = `
    CREATE TABLE IF NOT EXISTS security_events (
        event_date   text,
        event_bucket int,
        event_time   timestamp,
        event_id     text,
        event_type   text,
        account_id   text,
        session_ref  text,
        success      boolean,
        reason       text,
        ip_address   text,
        user_agent   text,
        request_id   text,
        PRIMARY KEY ((event_date, event_bucket), event_time, event_id)
    ) WITH CLUSTERING ORDER BY (event_time DESC, event_id ASC)
      AND default_time_to_live = 7776000`

const insertSecurityEvent = `
    INSERT INTO security_events (
        event_date, event_bucket, event_time, event_id, event_type, account_id,
        session_ref, success, reason, ip_address, user_agent, request_id
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type ScyllaClient struct {
	Session *gocql.Session
	config  config.ScyllaConfig
}

func NewScyllaClient(cfg config.ScyllaConfig) (*ScyllaClient, error) {
	cluster := gocql.NewCluster(cfg.Nodes...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
		NumRetries: 3,
	}

	if cfg.CAPath != "" {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 cfg.CAPath,
			EnableHostVerification: true,
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{Session: session, config: cfg}

	if err := session.Query(createSecurityEventsTable).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create security_events table: %w", err)
	}

	util.Info("ScyllaDB client initialized",
		util.Strings("nodes", cfg.Nodes),
		util.String("keyspace", cfg.Keyspace))

	return client, nil
}

func (s *ScyllaClient) Close() error {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
	return nil
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	util.Debug("ScyllaDB health check passed", util.String("cluster_name", clusterName))
	return nil
}

// Query builds a statement; gocql prepares and caches it on first execution.
func (s *ScyllaClient) Query(stmt string, values ...any) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

// ExecuteWithRetry runs query up to maxRetries+1 times with a linear backoff, stopping
// early when ctx is done.
func (s *ScyllaClient) ExecuteWithRetry(ctx context.Context, query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if lastErr = query.WithContext(ctx).Exec(); lastErr == nil {
			return nil
		}
		if i == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
		}
	}
	return lastErr
}

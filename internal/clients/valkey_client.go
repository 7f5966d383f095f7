package clients

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyOptions configures the broker connection.
type ValkeyOptions struct {
	Addresses []string
	Password  string
	UseTLS    bool
}

// ConnectValkey tries each address in order and returns the first client that
// answers PING, together with the address it connected to.
func ConnectValkey(ctx context.Context, opts ValkeyOptions) (valkey.Client, string, error) {
	return ResolveValkeyAddress(ctx, opts.Addresses, func(addr string) (valkey.Client, error) {
		return NewValkeyClient(ctx, addr, opts.Password, opts.UseTLS)
	})
}

// ResolveValkeyAddress probes candidates in order with connect and returns the
// first that succeeds.
func ResolveValkeyAddress(ctx context.Context, candidates []string, connect func(addr string) (valkey.Client, error)) (valkey.Client, string, error) {
	if len(candidates) == 0 {
		return nil, "", errors.New("[ValkeyClient] no broker address configured")
	}

	var errs []string
	for _, addr := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		client, err := connect(addr)
		if err != nil {
			slog.Warn("[ValkeyClient] Broker address unreachable",
				slog.String("address", addr),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Sprintf("%s: %v", addr, err))
			continue
		}
		slog.Info("[ValkeyClient] Successfully connected to valkey", slog.String("address", addr))
		return client, addr, nil
	}
	return nil, "", fmt.Errorf("[ValkeyClient] all broker addresses failed: %s", strings.Join(errs, "; "))
}

// NewValkeyClient creates a client for addr and verifies it with PING.
func NewValkeyClient(ctx context.Context, addr, password string, useTLS bool) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{addr},
		Password:         password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if useTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

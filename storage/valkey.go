package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyConfig holds connection settings for the Valkey backend.
type ValkeyConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Valkey stores each document as a string value under a prefixed key.
type Valkey struct {
	client valkey.Client
	prefix string
}

// NewValkey connects to Valkey and verifies the connection with a ping.
func NewValkey(ctx context.Context, cfg ValkeyConfig) (*Valkey, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return NewValkeyFromClient(client, cfg.Prefix), nil
}

// NewValkeyFromClient wraps an existing client.
func NewValkeyFromClient(client valkey.Client, prefix string) *Valkey {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Valkey{client: client, prefix: prefix}
}

// Close closes the underlying connection.
func (v *Valkey) Close() {
	v.client.Close()
}

func (v *Valkey) key(key string) string {
	return v.prefix + key
}

// Read loads a value.
func (v *Valkey) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := v.client.Do(ctx, v.client.B().Get().Key(v.key(key)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("valkey get: %w", err)
	}
	return data, nil
}

// Write stores a value without expiry.
func (v *Valkey) Write(ctx context.Context, key string, data []byte) error {
	cmd := v.client.B().Set().Key(v.key(key)).Value(valkey.BinaryString(data)).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Delete removes a value.
func (v *Valkey) Delete(ctx context.Context, key string) error {
	n, err := v.client.Do(ctx, v.client.B().Del().Key(v.key(key)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("valkey del: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

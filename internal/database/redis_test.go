package database

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"go.uber.org/zap"
)

func TestConnectRedisWithoutServer(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RedisConfig
	}{
		{"no host", config.RedisConfig{}},
		// nothing listens on port 1
		{"refused", config.RedisConfig{Host: "127.0.0.1", Port: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rdb := ConnectRedis(context.Background(), tt.cfg, zap.NewNop()); rdb != nil {
				rdb.Close()
				t.Fatal("expected no client")
			}
		})
	}
}

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisClients_InvalidURL(t *testing.T) {
	clients, err := NewRedisClients(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
	assert.Nil(t, clients)
}

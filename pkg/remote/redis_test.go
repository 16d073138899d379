package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, "storycache:", cfg.KeyPrefix)
	assert.NotZero(t, cfg.DialTimeout)
	assert.NotZero(t, cfg.ReadTimeout)
	assert.NotZero(t, cfg.WriteTimeout)
}

func TestNamespacing(t *testing.T) {
	r := &RedisCache{keyPrefix: "storycache:"}

	assert.Equal(t, "storycache:story:route-66", r.namespaced("story:route-66"))
	assert.Equal(t, "storycache:story:*", r.namespaced("story:*"),
		"patterns are namespaced the same way as keys")
}

func TestNamespacing_EmptyPrefix(t *testing.T) {
	r := &RedisCache{}
	assert.Equal(t, "k", r.namespaced("k"))
}

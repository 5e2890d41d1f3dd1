package cache

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/erpgateway/config"
	"example.com/backstage/services/erpgateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCache(t *testing.T) {
	c, err := NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	var out []string
	assert.ErrorIs(t, c.Get(context.Background(), "k", &out), ErrCacheDisabled)
	assert.ErrorIs(t, c.Set(context.Background(), "k", out), ErrCacheDisabled)
	assert.ErrorIs(t, c.InvalidatePrefix(context.Background(), ItemPagePrefix), ErrCacheDisabled)
	assert.NoError(t, c.Close())
}

func TestUnreachableRedis(t *testing.T) {
	_, err := NewRedisCache(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func TestItemPageKey(t *testing.T) {
	assert.Equal(t, "erp:items:page:abc:0:0:100", ItemPageKey("abc", nil, 0, 100))

	since := time.Date(2022, 3, 17, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "erp:items:page:abc:1647504000:20:10", ItemPageKey("abc", &since, 20, 10))
}

func TestGroupsTag(t *testing.T) {
	groups := []models.GroupProperty{
		{Code: 100, PropertyName: "Properties5"},
		{Code: 101, PropertyName: "Properties5", IsFrozen: true},
	}
	tag := GroupsTag(groups)
	assert.Len(t, tag, 12)
	assert.Equal(t, tag, GroupsTag([]models.GroupProperty{groups[0], groups[1]}))

	remapped := []models.GroupProperty{groups[0], {Code: 102, PropertyName: "Properties5", IsFrozen: true}}
	assert.NotEqual(t, tag, GroupsTag(remapped))
	assert.NotEqual(t, tag, GroupsTag([]models.GroupProperty{groups[1], groups[0]}))
}

// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishMatchResult(t *testing.T) {
	mr := miniredis.RunT(t)
	Rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { Rdb = nil }()

	record := MatchResultRecord{
		RoomID:      "room-1",
		Winners:     []string{"alice", "carol"},
		WinningTeam: "A",
		EndedBy:     "jackwhot",
		PointsEach:  10,
		Timestamp:   time.Now().UnixMilli(),
	}
	require.NoError(t, PublishMatchResult(context.Background(), record))

	vals, err := mr.List(DefaultQueueName)
	require.NoError(t, err)
	require.Len(t, vals, 1)

	var got MatchResultRecord
	require.NoError(t, json.Unmarshal([]byte(vals[0]), &got))
	assert.Equal(t, record.RoomID, got.RoomID)
	assert.Equal(t, record.Winners, got.Winners)
	assert.Equal(t, 10, got.PointsEach)
}

func TestPublishMatchResultQueueNameOverride(t *testing.T) {
	mr := miniredis.RunT(t)
	Rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { Rdb = nil }()

	t.Setenv("SCOREKEEPER_QUEUE_NAME", "custom_queue")
	require.NoError(t, PublishMatchResult(context.Background(), MatchResultRecord{RoomID: "r"}))

	vals, err := mr.List("custom_queue")
	require.NoError(t, err)
	assert.Len(t, vals, 1)
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/primesmshub/sms-hub-api/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func messageLogs(t *testing.T, capacity int) map[string]MessageLog {
	_, rdb := newTestRedis(t)
	return map[string]MessageLog{
		"redis":  NewRedisMessageLog(rdb, capacity, discardLogger()),
		"memory": NewMemoryMessageLog(capacity),
	}
}

func TestMessageLogKeepsMostRecentNewestFirst(t *testing.T) {
	for name, log := range messageLogs(t, 100) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 130; i++ {
				require.NoError(t, log.Append(ctx, models.RelayMessage{
					ConnectionID: "A",
					Author:       models.AuthorWebUser,
					Text:         fmt.Sprintf("m%d", i),
					Timestamp:    int64(i),
				}))
			}

			msgs, err := log.List(ctx)
			require.NoError(t, err)
			require.Len(t, msgs, 100)
			assert.Equal(t, "m129", msgs[0].Text)
			assert.Equal(t, "m30", msgs[99].Text)
			for i := 1; i < len(msgs); i++ {
				assert.Greater(t, msgs[i-1].Timestamp, msgs[i].Timestamp)
			}
		})
	}
}

func TestMessageLogRoundTripsContactDetails(t *testing.T) {
	for name, log := range messageLogs(t, 10) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, log.Append(ctx, models.RelayMessage{
				ConnectionID:   "A",
				Author:         models.AuthorWebUser,
				Text:           "hello",
				ContactDetails: &models.ContactDetails{Email: "ada@example.com"},
			}))

			msgs, err := log.List(ctx)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			require.NotNil(t, msgs[0].ContactDetails)
			assert.Equal(t, "ada@example.com", msgs[0].ContactDetails.Email)
		})
	}
}

func TestRedisMessageLogUsesSharedKey(t *testing.T) {
	mr, rdb := newTestRedis(t)
	log := NewRedisMessageLog(rdb, 2, discardLogger())
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, log.Append(ctx, models.RelayMessage{ConnectionID: "A", Author: models.AuthorWebUser, Text: text}))
	}

	items, err := mr.List(MessageLogKey)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Contains(t, items[0], `"text":"c"`)
}

func TestRedisMessageLogSkipsMalformedEntries(t *testing.T) {
	mr, rdb := newTestRedis(t)
	_, err := mr.Lpush(MessageLogKey, "not json")
	require.NoError(t, err)

	var logged bytes.Buffer
	log := NewRedisMessageLog(rdb, 10, slog.New(slog.NewJSONHandler(&logged, nil)))
	require.NoError(t, log.Append(context.Background(), models.RelayMessage{ConnectionID: "A", Author: models.AuthorWebUser, Text: "ok"}))

	msgs, err := log.List(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ok", msgs[0].Text)
	assert.Contains(t, logged.String(), `"msg":"skipping malformed relay message"`)
}

func TestFilterByConnection(t *testing.T) {
	msgs := []models.RelayMessage{
		{ReplyToConnectionID: "A", Author: models.AuthorSupport, Text: "3"},
		{ConnectionID: "B", Author: models.AuthorWebUser, Text: "2"},
		{ConnectionID: "A", Author: models.AuthorWebUser, Text: "1"},
	}

	got := FilterByConnection(msgs, "A")
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].Text)
	assert.Equal(t, "1", got[1].Text)
	assert.Empty(t, FilterByConnection(msgs, "Z"))
}

func TestCorrelationStores(t *testing.T) {
	mr, rdb := newTestRedis(t)
	stores := map[string]CorrelationStore{
		"redis":  NewRedisCorrelationStore(rdb, time.Hour),
		"memory": NewMemoryCorrelationStore(time.Hour),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Remember(ctx, 42, "conn-A"))

			got, err := store.Resolve(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, "conn-A", got)

			missing, err := store.Resolve(ctx, 43)
			require.NoError(t, err)
			assert.Equal(t, "", missing)
		})
	}

	assert.True(t, mr.Exists("relay:corr:42"))
	mr.FastForward(2 * time.Hour)
	got, err := stores["redis"].Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestMemoryCorrelationStoreExpires(t *testing.T) {
	store := NewMemoryCorrelationStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Remember(context.Background(), 1, "conn"))
	now = now.Add(2 * time.Minute)

	got, err := store.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

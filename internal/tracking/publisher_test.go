package tracking

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(client string) domain.AnalyticsPayload {
	return domain.AnalyticsPayload{
		MeasurementID: "G-TEST1234",
		ClientID:      client,
		Events: []domain.PayloadEvent{{
			Name:   domain.EventPageView,
			Params: map[string]any{"campaign_medium": domain.MediumOrganic},
		}},
	}
}

func TestPublisher_EmitAndRecent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewPublisher(client, "", 0)
	ctx := context.Background()
	require.NoError(t, p.Emit(ctx, payload("a")))
	require.NoError(t, p.Emit(ctx, payload("b")))

	n, err := p.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := p.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ClientID, "newest first")
	assert.Equal(t, "organic", got[0].Events[0].Params["campaign_medium"])
	assert.True(t, mr.Exists(DefaultOutboxKey))
}

func TestPublisher_TrimsToLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewPublisher(client, "outbox:test", 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Emit(ctx, payload(fmt.Sprintf("c%d", i))))
	}

	got, err := p.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c4", got[0].ClientID)
	assert.Equal(t, "c2", got[2].ClientID)
}

func TestPublisher_EmitFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewPublisher(client, "", 0).Emit(context.Background(), payload("x"))
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(2)
	ctx := context.Background()
	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, r.Emit(ctx, payload(c)))
	}
	got := r.Payloads()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ClientID)
	assert.Equal(t, "c", got[1].ClientID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, r.Emit(cancelled, payload("d")), context.Canceled)
}

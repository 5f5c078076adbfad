package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"postboard/config"
	"postboard/internal/domain/service"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent() *service.SecurityEvent {
	return &service.SecurityEvent{
		RequestID:  "req-1",
		Type:       service.SecurityEventRefreshTokenReuse,
		UserID:     "user-1",
		JTI:        "jti-1",
		OccurredAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLocalHTTPPublisher_PostsPushMessage(t *testing.T) {
	var got PushMessage
	var requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, newDiscardLogger())
	require.NoError(t, publisher.PublishSecurityEvent(context.Background(), testEvent()))

	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, localPushSubscription, got.Subscription)
	assert.Equal(t, "refresh_token.reuse_detected", got.Message.Attributes["type"])

	raw, err := base64.StdEncoding.DecodeString(got.Message.Data)
	require.NoError(t, err)
	var event service.SecurityEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, "jti-1", event.JTI)
}

func TestLocalHTTPPublisher_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, newDiscardLogger())
	err := publisher.PublishSecurityEvent(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewEventPublisher_SelectsProvider(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	noop, err := NewEventPublisher(PublisherParams{Lc: lc, Config: &config.Config{}, Logger: newDiscardLogger()})
	require.NoError(t, err)
	assert.IsType(t, &noopPublisher{}, noop)
	assert.NoError(t, noop.PublishSecurityEvent(context.Background(), testEvent()))

	local, err := NewEventPublisher(PublisherParams{
		Lc:     lc,
		Config: &config.Config{PubSub: &config.PubSubConfig{Provider: ProviderLocal, LocalEndpoint: "http://localhost:1"}},
		Logger: newDiscardLogger(),
	})
	require.NoError(t, err)
	assert.IsType(t, &localHTTPPublisher{}, local)

	_, err = NewEventPublisher(PublisherParams{
		Lc:     lc,
		Config: &config.Config{PubSub: &config.PubSubConfig{Provider: ProviderLocal}},
		Logger: newDiscardLogger(),
	})
	assert.Error(t, err)

	_, err = NewEventPublisher(PublisherParams{
		Lc:     lc,
		Config: &config.Config{PubSub: &config.PubSubConfig{Provider: "kafka"}},
		Logger: newDiscardLogger(),
	})
	assert.Error(t, err)

	_, err = NewEventPublisher(PublisherParams{
		Lc:     lc,
		Config: &config.Config{PubSub: &config.PubSubConfig{Provider: ProviderGoogle}},
		Logger: newDiscardLogger(),
	})
	assert.Error(t, err)
}

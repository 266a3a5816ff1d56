package service_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/identity-api/internal/queue"
	"github.com/iliyamo/identity-api/internal/service"
)

// silentBroker accepts TCP connections but never speaks AMQP.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func newSilentPublisher(t *testing.T, buffer int) *service.AMQPPublisher {
	t.Helper()
	pub := service.NewAMQPPublisher(silentBroker(t), service.PublisherOptions{
		Logger:      zerolog.Nop(),
		Buffer:      buffer,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = pub.Close() })
	return pub
}

func TestAMQPPublisher_UnresponsiveBrokerDoesNotBlockLogin(t *testing.T) {
	f := setupTestFixture(t)
	svc := service.NewAuthService(f.store, f.signer, service.Options{
		Logger: zerolog.Nop(),
		Events: newSilentPublisher(t, 16),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	pair, err := svc.Login(ctx, testUserEmail, testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)

	_, err = svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)
}

func TestAMQPPublisher_BufferFullAndClose(t *testing.T) {
	pub := newSilentPublisher(t, 1)
	ev := queue.NewAuthEvent(queue.EventLogout, testUserEmail, "Authenticated", "Anonymous", time.Now())

	var busy int
	for i := 0; i < 3; i++ {
		err := pub.Publish(context.Background(), ev)
		if err != nil {
			require.ErrorIs(t, err, service.ErrPublisherBusy)
			busy++
		}
	}
	require.Positive(t, busy)

	done := make(chan struct{})
	go func() {
		_ = pub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while the broker was unresponsive")
	}
	require.ErrorIs(t, pub.Publish(context.Background(), ev), service.ErrPublisherClosed)
}

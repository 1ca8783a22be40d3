package notify_test

//go:generate mockgen -destination=mocks/dispatcher_mock.go -package=mocks regbook/internal/notify Dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"regbook/internal/notify"
	"regbook/internal/notify/mocks"
	id "regbook/pkg/domain"
)

func TestQueueEnqueueNeverBlocks(t *testing.T) {
	q := notify.NewQueue(2)

	// Fill the buffer and then some. Enqueue must return immediately even
	// with no consumer attached.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			q.Enqueue(notify.Notification{Kind: notify.KindTransferInitiated, AssetID: id.NewAssetID()})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	assert.Len(t, q.Inbox(), 2)
}

func TestWorkerDispatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	n := notify.Notification{
		Kind:           notify.KindTransferInitiated,
		AssetID:        id.NewAssetID(),
		RecipientEmail: "recipient@example.com",
	}

	delivered := make(chan struct{})
	dispatcher.EXPECT().
		Send(gomock.Any(), n).
		DoAndReturn(func(context.Context, notify.Notification) error {
			close(delivered)
			return nil
		})

	q := notify.NewQueue(8)
	worker := notify.NewWorker(dispatcher, q.Inbox(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	q.Enqueue(n)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("notification was not dispatched")
	}
}

func TestWorkerSurvivesDispatchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	first := notify.Notification{Kind: notify.KindClaimInitiated, AssetID: id.NewAssetID()}
	second := notify.Notification{Kind: notify.KindTransferInitiated, AssetID: id.NewAssetID()}

	delivered := make(chan notify.Notification, 2)
	dispatcher.EXPECT().
		Send(gomock.Any(), first).
		Return(errors.New("broker unreachable"))
	dispatcher.EXPECT().
		Send(gomock.Any(), second).
		DoAndReturn(func(_ context.Context, n notify.Notification) error {
			delivered <- n
			return nil
		})

	q := notify.NewQueue(8)
	worker := notify.NewWorker(dispatcher, q.Inbox(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	q.Enqueue(first)
	q.Enqueue(second)

	select {
	case got := <-delivered:
		require.Equal(t, second, got)
	case <-time.After(time.Second):
		t.Fatal("worker stopped after a dispatch failure")
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	q := notify.NewQueue(1)
	worker := notify.NewWorker(dispatcher, q.Inbox(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

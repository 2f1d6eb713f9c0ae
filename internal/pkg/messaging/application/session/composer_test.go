package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/usecase"
)

func newComposer(repo *fakeRepo, broker *fakeBroker) *Composer {
	return NewComposer(viewerID, usecase.NewSendMessageUseCase(repo, broker, nil))
}

func TestComposerRejectsBlankContentLocally(t *testing.T) {
	repo := newFakeRepo(testConversation())
	broker := newFakeBroker()
	c := newComposer(repo, broker)

	for _, body := range []string{"", "  ", "\t\n "} {
		_, err := c.Send(context.Background(), convID, body)
		assert.ErrorIs(t, err, messaging.ErrEmptyMessage)
	}
	assert.Zero(t, repo.saveCalls, "validation failures must not reach storage")
	assert.Empty(t, broker.published)
}

func TestComposerStoresAndPublishesInsert(t *testing.T) {
	repo := newFakeRepo(testConversation())
	broker := newFakeBroker()
	c := newComposer(repo, broker)

	m, err := c.Send(context.Background(), convID, "  hello there  ")
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, viewerID, m.SenderID)
	assert.Equal(t, "hello there", m.Body, "content is trimmed before storage")
	assert.False(t, m.IsRead)

	require.Equal(t, []messaging.EventKind{messaging.EventMessageInserted}, broker.publishedKinds())
	broker.mu.Lock()
	defer broker.mu.Unlock()
	assert.Equal(t, m.ID, broker.published[0].Message.ID)
}

func TestComposerSingleInFlightSend(t *testing.T) {
	repo := newFakeRepo(testConversation())
	broker := newFakeBroker()
	c := newComposer(repo, broker)

	entered := make(chan struct{})
	release := make(chan struct{})
	repo.onSave = func() {
		close(entered)
		<-release
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), convID, "first")
		firstDone <- err
	}()
	<-entered

	_, err := c.Send(context.Background(), convID, "second")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	require.NoError(t, <-firstDone)

	// The slot is free again once the first send settles.
	repo.mu.Lock()
	repo.onSave = nil
	repo.mu.Unlock()
	_, err = c.Send(context.Background(), convID, "third")
	assert.NoError(t, err)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 2, repo.saveCalls, "the rejected send never reached storage")
}

func TestComposerSurfacesPersistenceFailure(t *testing.T) {
	repo := newFakeRepo(testConversation())
	repo.saveErr = errors.New("connection reset")
	broker := newFakeBroker()
	c := newComposer(repo, broker)

	_, err := c.Send(context.Background(), convID, "doomed")
	require.Error(t, err)
	assert.ErrorIs(t, err, usecase.ErrPersistence)
	assert.Empty(t, broker.published, "nothing is announced for a failed store")

	// The failure releases the in-flight slot.
	repo.saveErr = nil
	_, err = c.Send(context.Background(), convID, "retry by hand")
	assert.NoError(t, err)
}

func TestComposerRejectsNonParticipantSender(t *testing.T) {
	conv := testConversation()
	conv.Customer.UserID = "99999999-9999-9999-9999-999999999999"
	repo := newFakeRepo(conv)
	broker := newFakeBroker()
	c := newComposer(repo, broker)

	_, err := c.Send(context.Background(), convID, "hello?")
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Empty(t, repo.history)
}

package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftwise/draftwise/internal/nats"
)

type fakeHistoryRepo struct {
	entries []Entry
	err     error
}

func (f *fakeHistoryRepo) Insert(_ context.Context, e *Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeHistoryRepo) ListByUser(_ context.Context, _ uuid.UUID, limit, offset int) (*Page, error) {
	return &Page{Entries: f.entries, Total: len(f.entries), Limit: limit, Offset: offset}, nil
}

// fakeMsg implements the slice of jetstream.Msg the consumer touches and
// records the ack outcome.
type fakeMsg struct {
	data   []byte
	acked  bool
	naked  bool
	termed bool
}

func (m *fakeMsg) Data() []byte                             { return m.data }
func (m *fakeMsg) Subject() string                          { return nats.SubjectGeneration }
func (m *fakeMsg) Reply() string                            { return "" }
func (m *fakeMsg) Headers() natsgo.Header                   { return nil }
func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) { return nil, errors.New("not a stream msg") }
func (m *fakeMsg) Ack() error                               { m.acked = true; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error          { m.acked = true; return nil }
func (m *fakeMsg) Nak() error                               { m.naked = true; return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error         { m.naked = true; return nil }
func (m *fakeMsg) InProgress() error                        { return nil }
func (m *fakeMsg) Term() error                              { m.termed = true; return nil }
func (m *fakeMsg) TermWithReason(string) error              { m.termed = true; return nil }

func eventMsg(t *testing.T, evt *nats.HistoryEvent) *fakeMsg {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return &fakeMsg{data: data}
}

func TestConsumer_PersistsAndAcks(t *testing.T) {
	repo := &fakeHistoryRepo{}
	c := &Consumer{repo: repo}

	evt := &nats.HistoryEvent{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Kind:          nats.KindGeneration,
		Model:         "gpt-4o",
		Provider:      "openai",
		UsedSharedKey: true,
		Success:       true,
		OccurredAt:    time.Now().UTC(),
	}
	msg := eventMsg(t, evt)

	c.handle(msg)

	assert.True(t, msg.acked)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, evt.ID, repo.entries[0].ID)
	assert.Equal(t, "gpt-4o", repo.entries[0].Model)
	assert.True(t, repo.entries[0].UsedSharedKey)
}

func TestConsumer_NaksOnRepositoryError(t *testing.T) {
	repo := &fakeHistoryRepo{err: errors.New("connection refused")}
	c := &Consumer{repo: repo}

	msg := eventMsg(t, &nats.HistoryEvent{ID: uuid.New(), UserID: uuid.New(), Kind: nats.KindActivity})
	c.handle(msg)

	assert.True(t, msg.naked, "a transient store failure should request redelivery")
	assert.False(t, msg.acked)
}

func TestConsumer_TermsMalformedEvents(t *testing.T) {
	repo := &fakeHistoryRepo{}
	c := &Consumer{repo: repo}

	msg := &fakeMsg{data: []byte("{not json")}
	c.handle(msg)

	assert.True(t, msg.termed, "a malformed event can never succeed and must not redeliver")
	assert.Empty(t, repo.entries)
}

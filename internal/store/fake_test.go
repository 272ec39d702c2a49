package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/stretchr/testify/require"
)

var (
	spaceID = uuid.MustParse("5bace000-0000-0000-0000-000000000001")
	ownerID = uuid.MustParse("0000000a-0000-0000-0000-000000000001")
	sarahID = uuid.MustParse("0000000a-0000-0000-0000-000000000002")
	mikeID  = uuid.MustParse("0000000a-0000-0000-0000-000000000003")

	generalID = uuid.MustParse("c4a00000-0000-0000-0000-000000000001")
	randomID  = uuid.MustParse("c4a00000-0000-0000-0000-000000000002")
	designID  = uuid.MustParse("c4a00000-0000-0000-0000-000000000003")

	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

var errBoom = errors.New("boom")

var roster = []models.Member{
	{UserID: ownerID, Name: "Anna Lee", Username: "owner", Role: models.RoleOwner},
	{UserID: sarahID, Name: "Sarah Chen", Username: "sarahc", Role: models.RoleMember},
	{UserID: mikeID, Name: "Mike Ross", Username: "mike", Role: models.RoleAdmin},
}

// fakeServer is an in-memory Persistence that behaves like the API: it
// assigns ids, stamps authorship, and returns canonical records.
type fakeServer struct {
	mu       sync.Mutex
	actor    uuid.UUID
	now      func() time.Time
	nextID   int64
	channels []models.Channel
	msgs     map[uuid.UUID][]models.Message

	failSend, failUpdate, failDelete, failList error

	// onSend runs after the server stored the message but before the
	// response reaches the client.
	onSend func(saved models.Message)
}

func newFakeServer(actor uuid.UUID, now func() time.Time, channels ...models.Channel) *fakeServer {
	return &fakeServer{
		actor:    actor,
		now:      now,
		nextID:   100,
		channels: channels,
		msgs:     make(map[uuid.UUID][]models.Message),
	}
}

func (f *fakeServer) member(id uuid.UUID) models.Member {
	for _, m := range roster {
		if m.UserID == id {
			return m
		}
	}
	return models.Member{UserID: id}
}

func (f *fakeServer) findLocked(id int64) *models.Message {
	for ch := range f.msgs {
		for i := range f.msgs[ch] {
			if f.msgs[ch][i].ID == id {
				return &f.msgs[ch][i]
			}
		}
	}
	return nil
}

// seed stores a message as if it had been sent earlier.
func (f *fakeServer) seed(channelID, sender uuid.UUID, text string, at time.Time) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	who := f.member(sender)
	m := models.Message{
		ID:        f.nextID,
		ChannelID: channelID,
		SenderID:  sender,
		Sender:    who.Name,
		Text:      text,
		CreatedAt: at,
		Time:      models.DisplayTime(at),
		Type:      models.MessageTypeUser,
	}
	f.msgs[channelID] = append(f.msgs[channelID], m)
	return m.Clone()
}

func (f *fakeServer) SendMessage(_ context.Context, channelID uuid.UUID, req models.CreateMessageRequest) (*models.Message, error) {
	f.mu.Lock()
	if f.failSend != nil {
		f.mu.Unlock()
		return nil, f.failSend
	}
	f.nextID++
	now := f.now()
	who := f.member(req.SenderID)
	m := models.Message{
		ID:              f.nextID,
		ChannelID:       channelID,
		SenderID:        req.SenderID,
		Sender:          who.Name,
		Text:            req.Text,
		CreatedAt:       now,
		Time:            models.DisplayTime(now),
		Type:            models.MessageTypeUser,
		Mentions:        req.Mentions,
		MentionEveryone: req.MentionEveryone,
		MentionRoles:    req.MentionRoles,
		Attachments:     req.Attachments,
		ReplyToID:       req.ReplyToID,
		ClientID:        req.ClientID,
	}
	if req.ReplyToID != nil {
		if target := f.findLocked(*req.ReplyToID); target != nil {
			m.ReplyTo = target.Snapshot()
		}
	}
	f.msgs[channelID] = append(f.msgs[channelID], m)
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(m.Clone())
	}
	out := m.Clone()
	return &out, nil
}

func (f *fakeServer) UpdateMessage(_ context.Context, id int64, text string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return nil, f.failUpdate
	}
	m := f.findLocked(id)
	if m == nil {
		return nil, errors.New("not found")
	}
	at := f.now()
	m.Text = text
	m.EditedAt = &at
	out := m.Clone()
	return &out, nil
}

func (f *fakeServer) DeleteMessage(_ context.Context, id int64) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return nil, f.failDelete
	}
	m := f.findLocked(id)
	if m == nil {
		return nil, errors.New("not found")
	}
	at := f.now()
	by := models.DeletedByAuthor
	if m.SenderID != f.actor {
		by = models.DeletedBy(f.member(f.actor).Role)
	}
	m.DeletedAt = &at
	m.DeletedByRole = &by
	out := m.Clone()
	return &out, nil
}

func (f *fakeServer) ForwardMessage(_ context.Context, id int64, target uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.findLocked(id)
	if src == nil {
		return nil, errors.New("not found")
	}
	var from string
	for _, ch := range f.channels {
		if ch.ID == src.ChannelID {
			from = ch.Name
		}
	}
	f.nextID++
	now := f.now()
	m := models.Message{
		ID:                   f.nextID,
		ChannelID:            target,
		SenderID:             f.actor,
		Sender:               f.member(f.actor).Name,
		Text:                 src.Text,
		Attachments:          append([]string(nil), src.Attachments...),
		CreatedAt:            now,
		Time:                 models.DisplayTime(now),
		Type:                 models.MessageTypeUser,
		ForwardedFromChannel: &from,
	}
	f.msgs[target] = append(f.msgs[target], m)
	out := m.Clone()
	return &out, nil
}

func (f *fakeServer) ListMessages(_ context.Context, channelID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]models.Message, 0, len(f.msgs[channelID]))
	for _, m := range f.msgs[channelID] {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (f *fakeServer) ListChannels(_ context.Context, _ uuid.UUID) ([]models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	return append([]models.Channel(nil), f.channels...), nil
}

func (f *fakeServer) ListMembers(_ context.Context, _ uuid.UUID) ([]models.Member, error) {
	return append([]models.Member(nil), roster...), nil
}

func (f *fakeServer) CreateChannel(_ context.Context, sp uuid.UUID, name, description string) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.channels {
		if strings.EqualFold(ch.Name, name) {
			return nil, apperr.Validation("fake.CreateChannel", "a channel with that name already exists")
		}
	}
	ch := models.Channel{ID: uuid.New(), SpaceID: sp, Name: name, Description: description, CreatedAt: f.now()}
	f.channels = append(f.channels, ch)
	return &ch, nil
}

func (f *fakeServer) UpdateChannel(_ context.Context, id uuid.UUID, name, description string) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.channels {
		if f.channels[i].ID == id {
			f.channels[i].Name = name
			f.channels[i].Description = description
			ch := f.channels[i]
			return &ch, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeServer) DeleteChannel(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.channels {
		if f.channels[i].ID == id {
			f.channels = append(f.channels[:i], f.channels[i+1:]...)
			delete(f.msgs, id)
			return nil
		}
	}
	return apperr.NotFound("fake.DeleteChannel", "channel not found")
}

// addChannel creates a channel behind the client's back, as another admin
// would.
func (f *fakeServer) addChannel(ch models.Channel) {
	f.mu.Lock()
	f.channels = append(f.channels, ch)
	f.mu.Unlock()
}

// fakeClock is a settable time source shared by the store and the fake.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testChannels() []models.Channel {
	return []models.Channel{
		{ID: generalID, SpaceID: spaceID, Name: "general", CreatedAt: t0},
		{ID: randomID, SpaceID: spaceID, Name: "random", CreatedAt: t0.Add(time.Second)},
		{ID: designID, SpaceID: spaceID, Name: "design", CreatedAt: t0.Add(2 * time.Second)},
	}
}

func testSpace() models.Space {
	return models.Space{
		ID:      spaceID,
		Name:    "Acme",
		OwnerID: ownerID,
		Members: []models.SpaceMember{
			{UserID: ownerID, Role: models.RoleOwner},
			{UserID: sarahID, Role: models.RoleMember},
			{UserID: mikeID, Role: models.RoleAdmin},
		},
		CreatedAt: t0,
	}
}

// setup returns a store for user with the test space active and general
// selected.
func setup(t *testing.T, user uuid.UUID, opts Options, channels ...models.Channel) (*Store, *fakeServer, *fakeClock) {
	t.Helper()
	if channels == nil {
		channels = testChannels()
	}
	clock := &fakeClock{t: t0.Add(time.Hour)}
	srv := newFakeServer(user, clock.Now, channels...)
	opts.Clock = clock.Now
	s := New(srv, user, opts)

	ctx := context.Background()
	require.NoError(t, s.SetActiveChatSpace(ctx, testSpace()))
	require.NoError(t, s.SetActiveChannel(ctx, channels[0].ID))
	return s, srv, clock
}

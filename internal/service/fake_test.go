package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/observ"
	"github.com/lalith-99/huddle/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	spaceID   = uuid.MustParse("5a000000-0000-0000-0000-000000000001")
	otherSpID = uuid.MustParse("5a000000-0000-0000-0000-000000000002")
	ownerID   = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	adminID   = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
	memberID  = uuid.MustParse("00000000-0000-0000-0000-0000000000a3")
	outsideID = uuid.MustParse("00000000-0000-0000-0000-0000000000a4")
	generalID = uuid.MustParse("c0000000-0000-0000-0000-000000000001")
	randomID  = uuid.MustParse("c0000000-0000-0000-0000-000000000002")
	foreignID = uuid.MustParse("c0000000-0000-0000-0000-000000000003")

	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

// memDB implements every repository interface over maps.
type memDB struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	roles    map[uuid.UUID]map[uuid.UUID]models.Role
	order    map[uuid.UUID][]uuid.UUID
	channels []models.Channel
	messages map[int64]*models.Message
	nextID   int64
	failing  error
}

func newMemDB() *memDB {
	db := &memDB{
		users:    make(map[uuid.UUID]models.User),
		roles:    make(map[uuid.UUID]map[uuid.UUID]models.Role),
		order:    make(map[uuid.UUID][]uuid.UUID),
		messages: make(map[int64]*models.Message),
		nextID:   1,
	}
	db.addMember(spaceID, ownerID, "Anna Lee", "anna", models.RoleOwner)
	db.addMember(spaceID, adminID, "Mike Ross", "mike", models.RoleAdmin)
	db.addMember(spaceID, memberID, "Sarah Chen", "sarahc", models.RoleMember)
	db.addMember(otherSpID, outsideID, "Olga Berg", "olga", models.RoleOwner)
	db.channels = []models.Channel{
		{ID: generalID, SpaceID: spaceID, Name: "general", CreatedAt: t0},
		{ID: randomID, SpaceID: spaceID, Name: "random", CreatedAt: t0.Add(time.Second)},
		{ID: foreignID, SpaceID: otherSpID, Name: "elsewhere", CreatedAt: t0},
	}
	return db
}

func (db *memDB) addMember(space, user uuid.UUID, name, username string, role models.Role) {
	db.users[user] = models.User{ID: user, Name: name, Username: username, CreatedAt: t0}
	if db.roles[space] == nil {
		db.roles[space] = make(map[uuid.UUID]models.Role)
	}
	db.roles[space][user] = role
	db.order[space] = append(db.order[space], user)
}

// seed stores a message directly, bypassing the service.
func (db *memDB) seed(channelID, sender uuid.UUID, text string, at time.Time) *models.Message {
	db.mu.Lock()
	defer db.mu.Unlock()
	msg := &models.Message{
		ID:           db.nextID,
		ChannelID:    channelID,
		SenderID:     sender,
		Sender:       db.users[sender].Name,
		Text:         text,
		Type:         models.MessageTypeUser,
		CreatedAt:    at,
		Mentions:     []uuid.UUID{},
		MentionRoles: []models.Role{},
		Attachments:  []string{},
	}
	db.nextID++
	db.messages[msg.ID] = msg
	return ptr(msg.Clone())
}

type spaces struct{ *memDB }

func (r spaces) GetByID(_ context.Context, id uuid.UUID) (*models.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return nil, r.failing
	}
	if _, ok := r.roles[id]; !ok {
		return nil, nil
	}
	sp := &models.Space{ID: id, Name: "Acme", CreatedAt: t0}
	for _, uid := range r.order[id] {
		sp.Members = append(sp.Members, models.SpaceMember{UserID: uid, Role: r.roles[id][uid]})
	}
	return sp, nil
}

type members struct{ *memDB }

func (r members) ListMembers(_ context.Context, space uuid.UUID) ([]models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return nil, r.failing
	}
	out := make([]models.Member, 0)
	for _, uid := range r.order[space] {
		u := r.users[uid]
		out = append(out, models.Member{UserID: uid, Name: u.Name, Username: u.Username, Role: r.roles[space][uid]})
	}
	return out, nil
}

func (r members) GetRole(_ context.Context, space, user uuid.UUID) (models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return "", r.failing
	}
	return r.roles[space][user], nil
}

type users struct{ *memDB }

func (r users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type channels struct{ *memDB }

func (r channels) Create(_ context.Context, space uuid.UUID, name, description string) (*models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.channels {
		if ch.SpaceID == space && strings.EqualFold(ch.Name, name) {
			return nil, repository.ErrDuplicateName
		}
	}
	ch := models.Channel{ID: uuid.New(), SpaceID: space, Name: name, Description: description, CreatedAt: t0.Add(time.Hour)}
	r.channels = append(r.channels, ch)
	return &ch, nil
}

func (r channels) GetByID(_ context.Context, id uuid.UUID) (*models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return nil, r.failing
	}
	for _, ch := range r.channels {
		if ch.ID == id {
			return &ch, nil
		}
	}
	return nil, nil
}

func (r channels) ListBySpace(_ context.Context, space uuid.UUID) ([]models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Channel, 0)
	for _, ch := range r.channels {
		if ch.SpaceID == space {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (r channels) Update(_ context.Context, id uuid.UUID, name, description string) (*models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.channels {
		if r.channels[i].ID == id {
			r.channels[i].Name = name
			r.channels[i].Description = description
			ch := r.channels[i]
			return &ch, nil
		}
	}
	return nil, nil
}

func (r channels) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.channels, func(ch models.Channel) bool { return ch.ID == id })
	if i < 0 {
		return nil
	}
	space := r.channels[i].SpaceID
	remaining := 0
	for _, ch := range r.channels {
		if ch.SpaceID == space {
			remaining++
		}
	}
	if remaining <= 1 {
		return repository.ErrLastChannel
	}
	r.channels = slices.Delete(r.channels, i, i+1)
	return nil
}

type messages struct{ *memDB }

func (r messages) Create(_ context.Context, channelID uuid.UUID, in repository.NewMessage) (*models.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return nil, false, r.failing
	}
	if in.ClientID != "" {
		for _, m := range r.messages {
			if m.SenderID == in.SenderID && m.ClientID == in.ClientID {
				if m.ChannelID != channelID {
					return nil, false, repository.ErrClientIDReused
				}
				return ptr(m.Clone()), false, nil
			}
		}
	}
	msg := &models.Message{
		ID:                   r.nextID,
		ChannelID:            channelID,
		SenderID:             in.SenderID,
		Sender:               r.users[in.SenderID].Name,
		Text:                 in.Text,
		Type:                 in.Type,
		CreatedAt:            t0.Add(time.Hour),
		Mentions:             in.Mentions,
		MentionEveryone:      in.MentionEveryone,
		MentionRoles:         in.MentionRoles,
		Attachments:          in.Attachments,
		ReplyToID:            in.ReplyToID,
		ForwardedFromChannel: in.ForwardedFromChannel,
		ClientID:             in.ClientID,
	}
	r.nextID++
	r.messages[msg.ID] = msg
	return ptr(msg.Clone()), true, nil
}

func (r messages) GetByID(_ context.Context, id int64) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	return ptr(m.Clone()), nil
}

func (r messages) ListByChannel(_ context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range r.messages {
		if m.ChannelID == channelID && (before == 0 || m.ID < before) {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Message) int { return int(b.ID - a.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r messages) UpdateText(_ context.Context, id int64, text string, at time.Time) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.DeletedAt != nil {
		return nil, nil
	}
	m.Text = text
	m.EditedAt = &at
	return ptr(m.Clone()), nil
}

func (r messages) SoftDelete(_ context.Context, id int64, at time.Time, by models.DeletedBy) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.DeletedAt != nil {
		return nil, nil
	}
	m.DeletedAt = &at
	m.DeletedByRole = &by
	return ptr(m.Clone()), nil
}

type recorder struct {
	mu       sync.Mutex
	events   []models.Event
	notified []models.Message
	fail     bool
}

func (r *recorder) Publish(_ context.Context, evt models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("bus down")
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) Notify(_ context.Context, _ uuid.UUID, msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, msg)
	return nil
}

func (r *recorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc *Service
	db  *memDB
	rec *recorder
	now *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	rec := &recorder{}
	now := t0.Add(time.Hour)
	f := &fixture{db: db, rec: rec, now: &now}
	f.svc = New(Repos{
		Spaces:   spaces{db},
		Members:  members{db},
		Users:    users{db},
		Channels: channels{db},
		Messages: messages{db},
	}, Options{
		Clock:     func() time.Time { return *f.now },
		Publisher: rec,
		Notifier:  rec,
		Metrics:   observ.NewMetrics(),
	}, zaptest.NewLogger(t))
	require.NotNil(t, f.svc)
	return f
}

func ptr(m models.Message) *models.Message { return &m }

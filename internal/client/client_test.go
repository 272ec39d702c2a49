package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/composer"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const token = "tok-123"

var (
	userID    = uuid.MustParse("00000000-0000-0000-0000-0000000000a3")
	spaceID   = uuid.MustParse("5a000000-0000-0000-0000-000000000001")
	generalID = uuid.MustParse("c0000000-0000-0000-0000-000000000001")
	randomID  = uuid.MustParse("c0000000-0000-0000-0000-000000000002")
)

// fakeAPI answers the routes the client uses with canned data.
type fakeAPI struct {
	t          *testing.T
	mux        *http.ServeMux
	lastQuery  string
	lastBody   map[string]any
	loadedMsgs atomic.Int32
	feed       chan models.Event
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	f := &fakeAPI{t: t, mux: http.NewServeMux(), feed: make(chan models.Event, 4)}
	stop := make(chan struct{})

	f.mux.HandleFunc("GET /v1/spaces/{id}/channels", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, http.StatusOK, []models.Channel{
			{ID: generalID, SpaceID: spaceID, Name: "general"},
			{ID: randomID, SpaceID: spaceID, Name: "random"},
		})
	})
	f.mux.HandleFunc("GET /v1/spaces/{id}/members", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, http.StatusOK, []models.Member{{UserID: userID, Name: "Sarah Chen", Username: "sarahc", Role: models.RoleOwner}})
	})
	f.mux.HandleFunc("GET /v1/channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery = r.URL.RawQuery
		f.loadedMsgs.Add(1)
		cid := uuid.MustParse(r.PathValue("id"))
		f.json(w, http.StatusOK, []models.Message{{ID: 1, ChannelID: cid, Text: "welcome"}})
	})
	f.mux.HandleFunc("POST /v1/channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.json(w, http.StatusCreated, models.Message{
			ID: 42, ChannelID: uuid.MustParse(r.PathValue("id")), SenderID: userID, Text: req.Text, ClientID: req.ClientID,
		})
	})
	f.mux.HandleFunc("PATCH /v1/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, http.StatusForbidden, map[string]string{"error": "edit window has closed"})
	})
	f.mux.HandleFunc("DELETE /v1/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	})
	f.mux.HandleFunc("POST /v1/messages/{id}/forward", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastBody))
		from := "general"
		f.json(w, http.StatusCreated, models.Message{ID: 43, ChannelID: randomID, ForwardedFromChannel: &from})
	})
	f.mux.HandleFunc("DELETE /v1/channels/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.json(w, http.StatusBadRequest, map[string]string{"error": "cannot delete the last channel in a space"})
	})
	f.mux.HandleFunc("POST /v1/spaces/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "notes.txt", hdr.Filename)
		assert.Equal(t, "meeting notes", string(data))
		assert.Equal(t, userID.String(), r.FormValue("uploader_id"))
		f.json(w, http.StatusCreated, map[string]string{"id": "file-1"})
	})
	f.mux.HandleFunc("GET /v1/spaces/{id}/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			select {
			case <-stop:
				return
			case evt, ok := <-f.feed:
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			}
		}
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/spaces/"+spaceID.String()+"/ws" && r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		close(stop)
		srv.Close()
	})

	c, err := New(srv.URL+"/", token)
	require.NoError(t, err)
	return f, c
}

func (f *fakeAPI) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func TestNormalizeBaseURL(t *testing.T) {
	got, err := NormalizeBaseURL(" https://chat.example.com/ ")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", got)

	for _, bad := range []string{"", "chat.example.com", "ftp://x"} {
		_, err := NormalizeBaseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestSendAndList(t *testing.T) {
	f, c := newFakeAPI(t)
	ctx := context.Background()

	msg, err := c.SendMessage(ctx, generalID, models.CreateMessageRequest{Text: "hi", ClientID: "01J0"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, "01J0", msg.ClientID)

	msgs, err := c.ListMessagesBefore(ctx, generalID, 40, 20)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "before=40&limit=20", f.lastQuery)

	_, err = c.ListMessages(ctx, generalID)
	require.NoError(t, err)
	assert.Empty(t, f.lastQuery)
}

func TestStatusesMapToKinds(t *testing.T) {
	_, c := newFakeAPI(t)
	ctx := context.Background()

	_, err := c.UpdateMessage(ctx, 7, "late")
	assert.ErrorIs(t, err, apperr.ErrPermission)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "edit window has closed", apiErr.Message)

	_, err = c.DeleteMessage(ctx, 7)
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	err = c.DeleteChannel(ctx, generalID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	bad, err := New(c.baseURL, "wrong")
	require.NoError(t, err)
	_, err = bad.ListChannels(ctx, spaceID)
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func TestForwardSendsTargetChannel(t *testing.T) {
	f, c := newFakeAPI(t)

	msg, err := c.ForwardMessage(context.Background(), 7, randomID)
	require.NoError(t, err)
	require.NotNil(t, msg.ForwardedFromChannel)
	assert.Equal(t, "general", *msg.ForwardedFromChannel)
	assert.Equal(t, randomID.String(), f.lastBody["channel_id"])
}

func TestUploadStreamsMultipart(t *testing.T) {
	_, c := newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("meeting notes"), 0o600))

	id, err := c.Upload(context.Background(), spaceID, composer.File{Name: "notes.txt", Path: path, Size: 13}, userID)
	require.NoError(t, err)
	assert.Equal(t, "file-1", id)

	_, err = c.Upload(context.Background(), spaceID, composer.File{Name: "gone", Path: filepath.Join(t.TempDir(), "missing")}, userID)
	assert.Error(t, err)
}

func TestFeedURL(t *testing.T) {
	c, err := New("https://chat.example.com", "a b")
	require.NoError(t, err)
	got, err := c.FeedURL(spaceID)
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/v1/spaces/"+spaceID.String()+"/ws?access_token=a+b", got)
}

func TestFollowAppliesPushedEvents(t *testing.T) {
	f, c := newFakeAPI(t)
	ctx := context.Background()

	st := store.New(c, userID, store.Options{})
	require.NoError(t, st.SetActiveChatSpace(ctx, models.Space{ID: spaceID, Name: "Acme"}))
	require.NoError(t, st.SetActiveChannel(ctx, generalID))
	require.Equal(t, int32(1), f.loadedMsgs.Load())

	general := models.Channel{ID: generalID, SpaceID: spaceID, Name: "general"}
	f.feed <- models.Event{
		Type:      models.EventMessageCreated,
		SpaceID:   spaceID,
		ChannelID: generalID,
		Message:   &models.Message{ID: 2, ChannelID: generalID, Text: "pushed", Type: models.MessageTypeUser},
	}
	f.feed <- models.Event{Type: models.EventChannelDeleted, SpaceID: spaceID, ChannelID: generalID, Channel: &general}
	close(f.feed)

	var seen []models.EventType
	done := make(chan error, 1)
	go func() {
		done <- c.Follow(ctx, st, func(evt models.Event) {
			// The store has already moved on by the time the hook runs.
			if evt.Type == models.EventChannelDeleted {
				assert.Equal(t, randomID, st.ActiveChannel().ID)
			}
			seen = append(seen, evt.Type)
		})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("feed did not finish")
	}

	require.NotNil(t, st.ActiveChannel())
	assert.Equal(t, randomID, st.ActiveChannel().ID)
	assert.Equal(t, int32(2), f.loadedMsgs.Load())
	assert.Len(t, st.Channels(), 1)
	assert.Equal(t, []models.EventType{models.EventMessageCreated, models.EventChannelDeleted}, seen)
}

func TestWatchStopsOnCancel(t *testing.T) {
	_, c := newFakeAPI(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, spaceID, func(models.Event) {}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchRejectedHandshake(t *testing.T) {
	_, c := newFakeAPI(t)
	c.token = "wrong"

	err := c.Watch(context.Background(), spaceID, func(models.Event) {})
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

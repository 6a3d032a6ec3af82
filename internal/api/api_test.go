package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manziro785/online-chat-back/internal/api"
	"github.com/manziro785/online-chat-back/internal/auth"
	"github.com/manziro785/online-chat-back/internal/server/middleware"
	"github.com/manziro785/online-chat-back/internal/store"
)

type recordingKicker struct {
	calls [][2]string
}

func (k *recordingKicker) KickUser(channelID, kickedUserID string) {
	k.calls = append(k.calls, [2]string{channelID, kickedUserID})
}

type apiFixture struct {
	server *httptest.Server
	store  *store.Store
	kicker *recordingKicker
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(t.TempDir() + "/api_test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	verifier := auth.NewVerifier("test-secret", time.Hour, st)
	kicker := &recordingKicker{}

	authed := func(h http.Handler) http.Handler {
		return middleware.Chain(h,
			middleware.RequestMetadataMiddleware(),
			middleware.NewAuthMiddleware(logger, verifier),
		)
	}
	open := func(h http.Handler) http.Handler {
		return middleware.Chain(h, middleware.RequestMetadataMiddleware())
	}

	mux := http.NewServeMux()
	api.Mount(mux, logger, st, verifier, kicker, authed, open)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &apiFixture{server: server, store: st, kicker: kicker}
}

// do issues a request against the fixture server and decodes the JSON body
// into out (when out is non-nil).
func (f *apiFixture) do(t *testing.T, method, path, token string, body, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type authResult struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Nickname string `json:"nickname"`
	} `json:"user"`
}

func (f *apiFixture) registerUser(t *testing.T, email, nickname string) authResult {
	t.Helper()
	var res authResult
	resp := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"nickname": nickname,
		"password": "secret123",
	}, &res)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return res
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	res := f.registerUser(t, "alice@example.com", "alice")
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice", res.User.Nickname)

	// duplicate email is rejected
	resp := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"nickname": "alice2",
		"password": "secret123",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var login authResult
	resp = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	}, &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, res.User.ID, login.User.ID)

	resp = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "nickname": "bob", "password": "secret123"}},
		{"short nickname", map[string]string{"email": "bob@example.com", "nickname": "ab", "password": "secret123"}},
		{"short password", map[string]string{"email": "bob@example.com", "nickname": "bob", "password": "123"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/auth/register", "", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCurrentUserRequiresToken(t *testing.T) {
	f := newAPIFixture(t)
	res := f.registerUser(t, "alice@example.com", "alice")

	resp := f.do(t, http.MethodGet, "/api/auth/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body struct {
		User struct {
			Nickname string `json:"nickname"`
		} `json:"user"`
	}
	resp = f.do(t, http.MethodGet, "/api/auth/me", res.Token, nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body.User.Nickname)
}

func TestChannelLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.registerUser(t, "admin@example.com", "admin")
	member := f.registerUser(t, "member@example.com", "member")

	var created struct {
		Channel struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			AdminCode string `json:"adminCode"`
		} `json:"channel"`
	}
	resp := f.do(t, http.MethodPost, "/api/channels", admin.Token, map[string]string{
		"name": "general",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.Channel.AdminCode, "creator should see the admin code")

	// join by admin code
	var joined struct {
		Channel struct {
			ID        string `json:"id"`
			AdminCode string `json:"adminCode"`
		} `json:"channel"`
	}
	resp = f.do(t, http.MethodPost, "/api/channels/join", member.Token, map[string]string{
		"adminCode": created.Channel.AdminCode,
	}, &joined)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.Channel.ID, joined.Channel.ID)
	assert.Empty(t, joined.Channel.AdminCode, "joiner must not see the admin code")

	// joining twice conflicts
	resp = f.do(t, http.MethodPost, "/api/channels/join", member.Token, map[string]string{
		"adminCode": created.Channel.AdminCode,
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var members struct {
		Members []struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"members"`
	}
	resp = f.do(t, http.MethodGet, "/api/channels/"+created.Channel.ID+"/members", member.Token, nil, &members)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, members.Members, 2)
}

func TestGetAndUpdateChannel(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.registerUser(t, "admin@example.com", "admin")
	member := f.registerUser(t, "member@example.com", "member")
	outsider := f.registerUser(t, "outsider@example.com", "outsider")

	var created struct {
		Channel struct {
			ID        string `json:"id"`
			AdminCode string `json:"adminCode"`
		} `json:"channel"`
	}
	resp := f.do(t, http.MethodPost, "/api/channels", admin.Token, map[string]string{"name": "general"}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/channels/join", member.Token, map[string]string{"adminCode": created.Channel.AdminCode}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	channelPath := "/api/channels/" + created.Channel.ID

	// members can read the channel, outsiders cannot
	var got struct {
		Channel struct {
			Name      string `json:"name"`
			AdminCode string `json:"adminCode"`
		} `json:"channel"`
	}
	resp = f.do(t, http.MethodGet, channelPath, member.Token, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "general", got.Channel.Name)
	assert.Empty(t, got.Channel.AdminCode, "non-creators must not see the admin code")

	resp = f.do(t, http.MethodGet, channelPath, outsider.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/channels/no-such-channel", admin.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// only admins can update details
	resp = f.do(t, http.MethodPatch, channelPath, member.Token, map[string]string{"name": "renamed"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, channelPath, admin.Token, map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var updated struct {
		Channel struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"channel"`
	}
	resp = f.do(t, http.MethodPatch, channelPath, admin.Token, map[string]string{
		"name":        "renamed",
		"description": "the lounge",
	}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "renamed", updated.Channel.Name)
	assert.Equal(t, "the lounge", updated.Channel.Description)

	// a partial update leaves the other fields alone
	resp = f.do(t, http.MethodPatch, channelPath, admin.Token, map[string]string{"description": "quiet now"}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "renamed", updated.Channel.Name)
	assert.Equal(t, "quiet now", updated.Channel.Description)
}

func TestUpdateProfile(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.registerUser(t, "alice@example.com", "alice")
	f.registerUser(t, "bob@example.com", "bob")

	resp := f.do(t, http.MethodPatch, "/api/users/me", alice.Token, map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/users/me", alice.Token, map[string]string{"nickname": "ab"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/users/me", alice.Token, map[string]string{"nickname": "bob"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var updated struct {
		User struct {
			Nickname  string `json:"nickname"`
			AvatarURL string `json:"avatarUrl"`
		} `json:"user"`
	}
	resp = f.do(t, http.MethodPatch, "/api/users/me", alice.Token, map[string]string{
		"nickname":  "alice2",
		"avatarUrl": "https://example.com/a.png",
	}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice2", updated.User.Nickname)
	assert.Equal(t, "https://example.com/a.png", updated.User.AvatarURL)

	// keeping your own nickname is not a conflict
	resp = f.do(t, http.MethodPatch, "/api/users/me", alice.Token, map[string]string{"nickname": "alice2"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestKickMember(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.registerUser(t, "admin@example.com", "admin")
	member := f.registerUser(t, "member@example.com", "member")

	var created struct {
		Channel struct {
			ID        string `json:"id"`
			AdminCode string `json:"adminCode"`
		} `json:"channel"`
	}
	resp := f.do(t, http.MethodPost, "/api/channels", admin.Token, map[string]string{"name": "general"}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/channels/join", member.Token, map[string]string{"adminCode": created.Channel.AdminCode}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	channelID := created.Channel.ID
	kickPath := "/api/channels/" + channelID + "/members/"

	// members cannot kick
	resp = f.do(t, http.MethodDelete, kickPath+admin.User.ID, member.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// the creator is protected
	resp = f.do(t, http.MethodDelete, kickPath+admin.User.ID, admin.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, kickPath+member.User.ID, admin.Token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// membership is revoked and the realtime layer was signaled
	isMember, err := f.store.IsMember(context.Background(), channelID, member.User.ID)
	require.NoError(t, err)
	assert.False(t, isMember)
	require.Len(t, f.kicker.calls, 1)
	assert.Equal(t, [2]string{channelID, member.User.ID}, f.kicker.calls[0])

	// kicking again reports the user is gone
	resp = f.do(t, http.MethodDelete, kickPath+member.User.ID, admin.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateChannelStoreFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(t.TempDir() + "/failure_test.db")
	require.NoError(t, err)
	admin, err := st.CreateUser(context.Background(), "admin@example.com", "admin", "hash")
	require.NoError(t, err)

	// Wire the routes with the identity pre-resolved, then take the
	// database away so the admin-code lookup fails with a real error.
	authed := func(h http.Handler) http.Handler {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if meta, ok := middleware.ReqMetadataFrom(r.Context()); ok {
				meta.User = admin
			}
			h.ServeHTTP(w, r)
		})
		return middleware.Chain(inner, middleware.RequestMetadataMiddleware())
	}
	open := func(h http.Handler) http.Handler {
		return middleware.Chain(h, middleware.RequestMetadataMiddleware())
	}
	mux := http.NewServeMux()
	api.Mount(mux, logger, st, auth.NewVerifier("test-secret", time.Hour, st), &recordingKicker{}, authed, open)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	require.NoError(t, st.Close())

	done := make(chan int, 1)
	go func() {
		body, _ := json.Marshal(map[string]string{"name": "general"})
		resp, err := server.Client().Post(server.URL+"/api/channels", "application/json", bytes.NewReader(body))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	// The handler must answer instead of retrying the lookup forever.
	select {
	case status := <-done:
		assert.Equal(t, http.StatusInternalServerError, status)
	case <-time.After(5 * time.Second):
		t.Fatal("create channel did not return after store failure")
	}
}

func TestAddMemberAndDeleteChannel(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.registerUser(t, "admin@example.com", "admin")
	member := f.registerUser(t, "member@example.com", "member")

	var created struct {
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}
	resp := f.do(t, http.MethodPost, "/api/channels", admin.Token, map[string]string{"name": "general"}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	channelID := created.Channel.ID
	membersPath := "/api/channels/" + channelID + "/members"

	// non-admins cannot add members
	resp = f.do(t, http.MethodPost, membersPath, member.Token, map[string]string{"user_id": member.User.ID}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, membersPath, admin.Token, map[string]string{"user_id": "no-such-user"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, membersPath, admin.Token, map[string]string{"user_id": member.User.ID}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, membersPath, admin.Token, map[string]string{"user_id": member.User.ID}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// only the creator can delete
	resp = f.do(t, http.MethodDelete, "/api/channels/"+channelID, member.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/channels/"+channelID, admin.Token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// memberships cascade away with the channel
	isMember, err := f.store.IsMember(context.Background(), channelID, member.User.ID)
	require.NoError(t, err)
	assert.False(t, isMember)

	resp = f.do(t, http.MethodDelete, "/api/channels/"+channelID, admin.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChannelMessagesRequiresMembership(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.registerUser(t, "admin@example.com", "admin")
	outsider := f.registerUser(t, "outsider@example.com", "outsider")

	var created struct {
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}
	resp := f.do(t, http.MethodPost, "/api/channels", admin.Token, map[string]string{"name": "general"}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, err := f.store.PersistChannelMessage(context.Background(), created.Channel.ID, admin.User.ID, "hello")
	require.NoError(t, err)

	resp = f.do(t, http.MethodGet, "/api/channels/"+created.Channel.ID+"/messages", outsider.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var history struct {
		Messages []struct {
			Content        string `json:"content"`
			SenderNickname string `json:"senderNickname"`
		} `json:"messages"`
	}
	resp = f.do(t, http.MethodGet, "/api/channels/"+created.Channel.ID+"/messages", admin.Token, nil, &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hello", history.Messages[0].Content)
	assert.Equal(t, "admin", history.Messages[0].SenderNickname)
}

func TestDirectMessageHistoryAndConversations(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.registerUser(t, "alice@example.com", "alice")
	bob := f.registerUser(t, "bob@example.com", "bob")

	_, err := f.store.PersistDirectMessage(context.Background(), alice.User.ID, bob.User.ID, "hi bob")
	require.NoError(t, err)
	_, err = f.store.PersistDirectMessage(context.Background(), bob.User.ID, alice.User.ID, "hi alice")
	require.NoError(t, err)

	var history struct {
		Messages []struct {
			SenderID        string `json:"senderId"`
			Content         string `json:"content"`
			IsDirectMessage bool   `json:"isDirectMessage"`
		} `json:"messages"`
	}
	resp := f.do(t, http.MethodGet, "/api/direct/"+bob.User.ID+"/messages", alice.Token, nil, &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history.Messages, 2)
	assert.True(t, history.Messages[0].IsDirectMessage)
	assert.Equal(t, "hi bob", history.Messages[0].Content)

	resp = f.do(t, http.MethodGet, "/api/direct/no-such-user/messages", alice.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var convs struct {
		Conversations []struct {
			UserID   string `json:"userId"`
			Nickname string `json:"nickname"`
		} `json:"conversations"`
	}
	resp = f.do(t, http.MethodGet, "/api/direct/conversations", alice.Token, nil, &convs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, "bob", convs.Conversations[0].Nickname)
}

func TestUserSearch(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.registerUser(t, "alice@example.com", "alice")
	f.registerUser(t, "alicia@example.com", "alicia")
	f.registerUser(t, "bob@example.com", "bob")

	var results struct {
		Users []struct {
			Nickname string `json:"nickname"`
		} `json:"users"`
	}
	resp := f.do(t, http.MethodGet, "/api/users/search?q=ali", alice.Token, nil, &results)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, results.Users, 2)

	resp = f.do(t, http.MethodGet, "/api/users/search?q=", alice.Token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package bsky_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thand-io/skypost/internal/bsky"
	"github.com/thand-io/skypost/internal/bsky/bskytest"
	"github.com/thand-io/skypost/internal/models"
)

func TestClient_CreateSession(t *testing.T) {
	server := bskytest.NewServer(t)
	client := bsky.NewClient(server.URL + "/")

	session, err := client.CreateSession(context.Background(), models.Credentials{
		Identifier: "alice.test",
		Password:   bskytest.Password,
	})
	require.NoError(t, err)
	assert.Equal(t, server.Account, *session)
	assert.Equal(t, server.URL, client.Service())
}

func TestClient_CreateSession_Rejected(t *testing.T) {
	server := bskytest.NewServer(t)
	client := bsky.NewClient(server.URL)

	_, err := client.CreateSession(context.Background(), models.Credentials{
		Identifier: "alice.test",
		Password:   "wrong",
	})
	require.Error(t, err)

	var xe *bsky.XRPCError
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, http.StatusUnauthorized, xe.StatusCode)
	assert.Equal(t, "AuthenticationRequired", xe.ErrStr)

	// The decoded error body is reachable as the indigo type
	var body *xrpc.XRPCError
	require.True(t, errors.As(err, &body))
	assert.Equal(t, "Invalid identifier or password", body.Message)
	assert.True(t, bsky.IsAuthRejected(err))
	assert.False(t, bsky.IsExpiredToken(err))
}

func TestClient_GetSession_Expired(t *testing.T) {
	server := bskytest.NewServer(t)
	server.ExpiredAccess["stale"] = true
	client := bsky.NewClient(server.URL)

	_, err := client.GetSession(context.Background(), "stale")
	assert.True(t, bsky.IsExpiredToken(err))
	assert.True(t, bsky.IsAuthRejected(err))
}

func TestClient_RefreshSession_SendsRefreshToken(t *testing.T) {
	server := bskytest.NewServer(t)
	client := bsky.NewClient(server.URL)

	refreshed, err := client.RefreshSession(context.Background(), bskytest.RefreshJwt)
	require.NoError(t, err)
	assert.Equal(t, "access-2", refreshed.AccessJwt)
	assert.Equal(t, "refresh-2", refreshed.RefreshJwt)
	assert.Equal(t, 1, server.Calls("com.atproto.server.refreshSession"))
}

func TestClient_ResolveHandle(t *testing.T) {
	server := bskytest.NewServer(t)
	client := bsky.NewClient(server.URL)

	did, err := client.ResolveHandle(context.Background(), bskytest.AccessJwt, "alice.test")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:alice", did)

	_, err = client.ResolveHandle(context.Background(), bskytest.AccessJwt, "nobody.test")
	var xe *bsky.XRPCError
	assert.True(t, errors.As(err, &xe))
	assert.False(t, bsky.IsAuthRejected(err))
}

func TestClient_CreateRecord(t *testing.T) {
	server := bskytest.NewServer(t)
	client := bsky.NewClient(server.URL)

	result, err := client.CreateRecord(context.Background(), bskytest.AccessJwt, &atproto.RepoCreateRecord_Input{
		Repo:       "did:plc:alice",
		Collection: models.FeedPostCollection,
		Record: &lexutil.LexiconTypeDecoder{
			Val: &appbsky.FeedPost{Text: "hi", CreatedAt: "2024-03-01T11:30:45.123Z"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:alice/app.bsky.feed.post/3kabc", result.Uri)
	assert.Equal(t, "bafyreib", result.Cid)

	records := server.Records()
	require.Len(t, records, 1)
	var record map[string]any
	require.NoError(t, json.Unmarshal(records[0], &record))
	assert.Equal(t, "hi", record["text"])
	assert.Equal(t, models.FeedPostCollection, record["$type"])
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	server := bskytest.NewServer(t)
	server.Handle("com.atproto.server.getSession", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down\n"))
	})
	client := bsky.NewClient(server.URL)

	_, err := client.GetSession(context.Background(), bskytest.AccessJwt)
	var xe *bsky.XRPCError
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, "Bad Gateway", xe.ErrStr)
	assert.Equal(t, "upstream down", xe.Message)
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	server := bskytest.NewServer(t)
	client := bsky.NewClient(server.URL)
	server.Close()

	_, err := client.GetSession(context.Background(), bskytest.AccessJwt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNetwork))
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRecord_JSONShape(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.FixedZone("X", 3600))
	record := NewPostRecord("hi @alice.test", []*bsky.RichtextFacet{
		{
			Index: &bsky.RichtextFacet_ByteSlice{ByteStart: 3, ByteEnd: 14},
			Features: []*bsky.RichtextFacet_Features_Elem{
				{RichtextFacet_Mention: &bsky.RichtextFacet_Mention{Did: "did:plc:alice"}},
			},
		},
	}, nil, createdAt)

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "app.bsky.feed.post", decoded["$type"])
	assert.Equal(t, "hi @alice.test", decoded["text"])
	assert.Equal(t, "2024-03-01T11:30:45.123Z", decoded["createdAt"])
	assert.NotContains(t, decoded, "langs")

	facets := decoded["facets"].([]any)
	require.Len(t, facets, 1)
	facet := facets[0].(map[string]any)
	index := facet["index"].(map[string]any)
	assert.Equal(t, float64(3), index["byteStart"])
	assert.Equal(t, float64(14), index["byteEnd"])
	feature := facet["features"].([]any)[0].(map[string]any)
	assert.Equal(t, "app.bsky.richtext.facet#mention", feature["$type"])
	assert.Equal(t, "did:plc:alice", feature["did"])
}

func TestPostRecord_OmitsEmptyFacets(t *testing.T) {
	data, err := json.Marshal(NewPostRecord("plain", nil, nil, time.Now()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "facets")
}

func TestPostRecord_DecodesFacetFeatures(t *testing.T) {
	var record bsky.FeedPost
	err := json.Unmarshal([]byte(`{
		"$type": "app.bsky.feed.post",
		"text": "see https://example.com #golang",
		"createdAt": "2024-03-01T11:30:45.123Z",
		"facets": [
			{"index": {"byteStart": 4, "byteEnd": 23},
			 "features": [{"$type": "app.bsky.richtext.facet#link", "uri": "https://example.com"}]},
			{"index": {"byteStart": 24, "byteEnd": 31},
			 "features": [{"$type": "app.bsky.richtext.facet#tag", "tag": "golang"}]}
		]
	}`), &record)
	require.NoError(t, err)
	require.Len(t, record.Facets, 2)

	assert.Equal(t, "https://example.com", record.Facets[0].Features[0].RichtextFacet_Link.Uri)
	assert.Equal(t, int64(23), record.Facets[0].Index.ByteEnd)
	assert.Equal(t, "golang", record.Facets[1].Features[0].RichtextFacet_Tag.Tag)
}

func TestFormatTimestamp(t *testing.T) {
	exact := time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC)
	assert.Equal(t, "2024-03-01T12:30:45.123Z", FormatTimestamp(exact))

	// Never earlier than the given instant
	between := time.Date(2024, 3, 1, 12, 30, 45, 123000001, time.UTC)
	assert.Equal(t, "2024-03-01T12:30:45.124Z", FormatTimestamp(between))

	carry := time.Date(2024, 12, 31, 23, 59, 59, 999500000, time.FixedZone("X", -3600))
	assert.Equal(t, "2025-01-01T01:00:00.000Z", FormatTimestamp(carry))

	parsed, err := time.Parse(time.RFC3339Nano, FormatTimestamp(between))
	require.NoError(t, err)
	assert.False(t, parsed.Before(between))
}

func TestError_KindMatching(t *testing.T) {
	base := NewValidationError("read input", ErrEmptyInput)
	wrapped := fmt.Errorf("run: %w", base)

	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.True(t, errors.Is(wrapped, ErrEmptyInput))
	assert.False(t, errors.Is(wrapped, ErrAuth))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindValidation, kind)
	assert.Equal(t, "ValidationError: read input: please input text", base.Error())
}

func TestError_DoesNotDoubleWrapSameKind(t *testing.T) {
	inner := NewAuthError("login", errors.New("bad password"))
	outer := NewAuthError("authenticate", inner)
	assert.Same(t, inner, outer)

	assert.Nil(t, NewIOError("save", nil))
}

func TestSessionData_Validity(t *testing.T) {
	var empty *SessionData
	assert.True(t, empty.IsZero())
	assert.False(t, empty.Valid())

	data := SessionData{AccessJwt: "access-token-value", RefreshJwt: "refresh-token-value", Did: "did:plc:abc", Handle: "alice.test"}
	assert.True(t, data.Valid())
	assert.False(t, data.IsZero())

	redacted := data.Redacted()
	assert.Equal(t, "acce...alue", redacted.AccessJwt)
	assert.Equal(t, "access-token-value", data.AccessJwt)

	data.Did = "plc:abc"
	assert.False(t, data.Valid())
}

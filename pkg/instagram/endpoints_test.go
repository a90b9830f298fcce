package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLConstruction(t *testing.T) {
	base := "https://www.instagram.com"

	assert.Equal(t, base+"/api/v1/users/web_profile_info/?username=some.profile", ProfileURL(base, "some.profile"))
	assert.Equal(t, base+"/api/v1/feed/reels_media/?reel_ids=123", ReelsMediaURL(base, "123"))
	assert.Equal(t, base+"/api/v1/feed/reels_media/?reel_ids=highlight%3A9", ReelsMediaURL(base, HighlightReelID("9")))
	assert.Equal(t, base+"/api/v1/highlights/123/highlights_tray/", HighlightsTrayURL(base, "123"))
	assert.Equal(t, base+"/api/v1/friendships/123/followers/?count=50", FriendshipsURL(base, "123", RelationFollowers, ""))
	assert.Equal(t, base+"/api/v1/friendships/123/following/?count=50&max_id=abc", FriendshipsURL(base, "123", RelationFollowing, "abc"))
	assert.Equal(t, base+"/api/v1/accounts/current_user/?edit=true", CurrentUserURL(base))
}

func TestHighlightReelID(t *testing.T) {
	assert.Equal(t, "highlight:9", HighlightReelID("9"))
	assert.Equal(t, "highlight:9", HighlightReelID("highlight:9"))
}

func TestGetUserProfileURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/someprofile/", GetUserProfileURL("someprofile"))
	assert.Equal(t, "", GetUserProfileURL(""))
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"someprofile", true},
		{"some.profile_01", true},
		{"", false},
		{"has space", false},
		{"dash-name", false},
		{"abcdefghij_abcdefghij_abcdefghij", false},
		{"émile", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidUsername(tt.username))
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := map[string]string{
		"@someprofile":    "someprofile",
		"someprofile/":    "someprofile",
		" someprofile// ": "someprofile",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeUsername(in), in)
	}
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, ".mp4", fileExtension("https://cdn.example/v/a.MP4?sig=1&x=.jpg"))
	assert.Equal(t, "", fileExtension("https://cdn.example/v/noext"))
}

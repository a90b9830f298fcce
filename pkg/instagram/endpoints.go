package instagram

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// AppID is the web client's application id, required by the private API
	AppID = "936619743392459"

	ProfileEndpoint     = "/api/v1/users/web_profile_info/"
	ReelsMediaEndpoint  = "/api/v1/feed/reels_media/"
	CurrentUserEndpoint = "/api/v1/accounts/current_user/"

	// FriendshipsPageSize is the number of accounts requested per page
	FriendshipsPageSize = 50

	highlightPrefix = "highlight:"
)

// Relation selects the followers or following list of an account
type Relation string

const (
	RelationFollowers Relation = "followers"
	RelationFollowing Relation = "following"
)

// ProfileURL constructs the URL for fetching a user's profile
func ProfileURL(base, username string) string {
	params := url.Values{}
	params.Set("username", username)
	return fmt.Sprintf("%s%s?%s", base, ProfileEndpoint, params.Encode())
}

// ReelsMediaURL constructs the URL for fetching story or highlight reels
func ReelsMediaURL(base string, reelIDs ...string) string {
	params := url.Values{}
	for _, id := range reelIDs {
		params.Add("reel_ids", id)
	}
	return fmt.Sprintf("%s%s?%s", base, ReelsMediaEndpoint, params.Encode())
}

// HighlightsTrayURL constructs the URL listing a user's highlights
func HighlightsTrayURL(base, userID string) string {
	return fmt.Sprintf("%s/api/v1/highlights/%s/highlights_tray/", base, url.PathEscape(userID))
}

// FriendshipsURL constructs one page URL of a user's followers or following
func FriendshipsURL(base, userID string, relation Relation, maxID string) string {
	params := url.Values{}
	params.Set("count", strconv.Itoa(FriendshipsPageSize))
	if maxID != "" {
		params.Set("max_id", maxID)
	}
	return fmt.Sprintf("%s/api/v1/friendships/%s/%s/?%s", base, url.PathEscape(userID), relation, params.Encode())
}

// CurrentUserURL constructs the URL used to verify a session
func CurrentUserURL(base string) string {
	return base + CurrentUserEndpoint + "?edit=true"
}

// HighlightReelID returns the reel id of a highlight
func HighlightReelID(highlightID string) string {
	return highlightPrefix + strings.TrimPrefix(highlightID, highlightPrefix)
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @ and trailing slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}

// fileExtension returns the extension of a CDN URL's path, ignoring the query
func fileExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

package instagram

import (
	"strings"
)

// ProfileResponse is the top-level response of web_profile_info
type ProfileResponse struct {
	RequiresToLogin bool        `json:"requires_to_login"`
	Data            ProfileData `json:"data"`
	Status          string      `json:"status"`
}

// ProfileData wraps the user information in the response
type ProfileData struct {
	User *User `json:"user"`
}

// User represents an Instagram user profile as returned by the web API
type User struct {
	ID                       string `json:"id"`
	Username                 string `json:"username"`
	FullName                 string `json:"full_name"`
	Biography                string `json:"biography"`
	IsPrivate                bool   `json:"is_private"`
	FollowedByViewer         bool   `json:"followed_by_viewer"`
	IsVerified               bool   `json:"is_verified"`
	IsBusinessAccount        bool   `json:"is_business_account"`
	ProfilePicURL            string `json:"profile_pic_url"`
	ProfilePicURLHD          string `json:"profile_pic_url_hd"`
	EdgeFollowedBy           Count  `json:"edge_followed_by"`
	EdgeFollow               Count  `json:"edge_follow"`
	EdgeOwnerToTimelineMedia Count  `json:"edge_owner_to_timeline_media"`
}

// Count is an edge that only carries a total
type Count struct {
	Count int64 `json:"count"`
}

// Profile is the resolved view of a user used by the bot and tracker
type Profile struct {
	ID               string
	Username         string
	FullName         string
	Biography        string
	IsPrivate        bool
	FollowedByViewer bool
	IsVerified       bool
	IsBusiness       bool
	Followers        int64
	Following        int64
	Posts            int64
	ProfilePicURL    string
	ProfilePicURLHD  string
}

// Accessible reports whether the session may see the profile's media
func (p *Profile) Accessible() bool {
	return !p.IsPrivate || p.FollowedByViewer
}

// HDProfilePicURL returns the largest known profile picture URL
func (p *Profile) HDProfilePicURL() string {
	if p.ProfilePicURLHD != "" {
		return p.ProfilePicURLHD
	}
	return strings.Replace(p.ProfilePicURL, "/s150x150/", "/s1080x1080/", 1)
}

func (u *User) toProfile() *Profile {
	return &Profile{
		ID:               u.ID,
		Username:         u.Username,
		FullName:         u.FullName,
		Biography:        u.Biography,
		IsPrivate:        u.IsPrivate,
		FollowedByViewer: u.FollowedByViewer,
		IsVerified:       u.IsVerified,
		IsBusiness:       u.IsBusinessAccount,
		Followers:        u.EdgeFollowedBy.Count,
		Following:        u.EdgeFollow.Count,
		Posts:            u.EdgeOwnerToTimelineMedia.Count,
		ProfilePicURL:    u.ProfilePicURL,
		ProfilePicURLHD:  u.ProfilePicURLHD,
	}
}

// ReelsResponse is returned by feed/reels_media for stories and highlights
type ReelsResponse struct {
	Reels  map[string]Reel `json:"reels"`
	Status string          `json:"status"`
}

// Reel is one story tray or one highlight
type Reel struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Items []ReelItem `json:"items"`
}

// Media types used by the private API
const (
	MediaTypeImage = 1
	MediaTypeVideo = 2
)

// ReelItem is one story or highlight entry
type ReelItem struct {
	ID             string          `json:"id"`
	TakenAt        int64           `json:"taken_at"`
	MediaType      int             `json:"media_type"`
	ImageVersions2 ImageVersions   `json:"image_versions2"`
	VideoVersions  []MediaResource `json:"video_versions"`
	User           ReelUser        `json:"user"`
}

// ImageVersions holds image candidates, largest first
type ImageVersions struct {
	Candidates []MediaResource `json:"candidates"`
}

// MediaResource is one rendition of a media item
type MediaResource struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ReelUser is the owner attached to a reel item
type ReelUser struct {
	Username string `json:"username"`
}

// HighlightsTrayResponse lists the highlights of a profile
type HighlightsTrayResponse struct {
	Tray   []TrayEntry `json:"tray"`
	Status string      `json:"status"`
}

// TrayEntry is one highlight in the tray
type TrayEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	MediaCount int    `json:"media_count"`
}

// Highlight is a named story collection
type Highlight struct {
	ID         string
	Title      string
	MediaCount int
}

// FriendshipsResponse is one page of followers or following
type FriendshipsResponse struct {
	Users     []FriendshipUser `json:"users"`
	NextMaxID string           `json:"next_max_id"`
	Status    string           `json:"status"`
}

// FriendshipUser is an account in a followers/following page
type FriendshipUser struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// CurrentUserResponse is returned by accounts/current_user
type CurrentUserResponse struct {
	User struct {
		Username string `json:"username"`
	} `json:"user"`
	Status string `json:"status"`
}

// apiMessage is the body Instagram sends with most 4xx responses
type apiMessage struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

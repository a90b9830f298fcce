package bot

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	errs "igrelay/pkg/errors"
	"igrelay/pkg/instagram"
)

const (
	msgUsage = "📸 Send an Instagram profile URL to get:\n" +
		"- HD profile picture\n" +
		"- Latest stories\n" +
		"- Highlights\n" +
		"- Profile info\n\n" +
		"Example URL: https://www.instagram.com/instagram/\n\n" +
		"/start_tracking - report follower changes of the current profile\n" +
		"/stop_tracking - stop those reports"

	msgInvalidURL      = "❌ Invalid URL format!"
	msgUnknownCommand  = "❓ Unknown command. Send /help for usage."
	msgMenu            = "Choose a feature for @%s:"
	msgSessionExpired  = "❌ Session expired, please send the URL again"
	msgSendURLFirst    = "❌ Please send an Instagram profile URL first."
	msgBusy            = "⏳ The bot is busy, please try again in a moment."
	msgPrivate         = "🔒 Private profile - you don't follow this account"
	msgStoriesDenied   = "🔒 Private profile - the bot cannot access the stories"
	msgPrepareFailed   = "❌ Could not prepare the download, please try again later."
	msgGenericFailure  = "⚠️ Something went wrong, please try again later"
	msgRequestFailed   = "⚠️ Failed to process the request"
	msgAccessDenied    = "⚠️ Access denied by Instagram"
	msgNotFound        = "❌ Profile @%s not found"
	msgRateLimited     = "⏳ Instagram is limiting requests, please try again later"
	msgSessionInvalid  = "⚠️ The Instagram session is no longer valid, the bot owner must refresh it"
	msgProfilePic      = "📸 Profile picture of @%s"
	msgProfilePicError = "⚠️ Failed to fetch the profile picture"
	msgStoriesError    = "⚠️ Failed to fetch stories"
	msgNoStories       = "📭 No stories available"
	msgStoriesSummary  = "📤 Total %d stories sent"

	msgHighlightsError  = "⚠️ Failed to fetch the highlight list"
	msgNoHighlights     = "🌟 No highlights available"
	msgHighlightsMenu   = "Choose a highlight for @%s (page %d):"
	msgHighlightBack    = "⏪ Back"
	msgHighlightNext    = "⏩ Next"
	msgHighlightMissing = "❌ Highlight not found"
	msgHighlightError   = "⚠️ Failed to process the highlight"
	msgHighlightEmpty   = "🌟 This highlight has no items"
	msgHighlightIntro   = "🔄 Processing %d items from highlight '%s'"
	msgHighlightSummary = "✅ %d items from highlight '%s' sent"

	msgProfileInfoError = "⚠️ Failed to fetch the profile info"

	msgTrackingDisabled = "❌ Tracking is disabled."
	msgTrackingActive   = "🔍 Tracking is already active for this account."
	msgTrackingStarted  = "🔍 Tracking enabled for @%s. The bot checks for changes %s."
	msgTrackingStopped  = "🔍 Tracking for @%s stopped."
	msgTrackingNone     = "❌ No active tracking for this account."
	msgTrackingError    = "⚠️ Failed to update tracking, please try again later"
)

// userMessage maps an upstream error to the text shown in the chat. Raw
// errors are only logged.
func userMessage(err error, username, fallback string) string {
	switch errs.TypeOf(err) {
	case errs.ErrorTypeAccessDenied, errs.ErrorTypeBadRequest:
		return msgAccessDenied
	case errs.ErrorTypeNotFound:
		return fmt.Sprintf(msgNotFound, username)
	case errs.ErrorTypeRateLimit:
		return msgRateLimited
	case errs.ErrorTypeAuth:
		return msgSessionInvalid
	default:
		return fallback
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func profileInfo(p *instagram.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Profile info of @%s:\n", p.Username)
	fmt.Fprintf(&b, "👤 Name: %s\n", p.FullName)
	fmt.Fprintf(&b, "📝 Bio: %s\n", p.Biography)
	fmt.Fprintf(&b, "✅ Verified: %s\n", yesNo(p.IsVerified))
	fmt.Fprintf(&b, "🏢 Business: %s\n", yesNo(p.IsBusiness))
	fmt.Fprintf(&b, "🔗 Followers: %s\n", humanize.Comma(p.Followers))
	fmt.Fprintf(&b, "👀 Following: %s\n", humanize.Comma(p.Following))
	fmt.Fprintf(&b, "📌 Posts: %s\n", humanize.Comma(p.Posts))
	fmt.Fprintf(&b, "🌐 %s", instagram.GetUserProfileURL(p.Username))
	return b.String()
}

// describeSchedule renders a schedule for the tracking confirmation
func describeSchedule(spec string) string {
	if every, ok := strings.CutPrefix(spec, "@every "); ok {
		return "every " + every
	}
	switch spec {
	case "@hourly":
		return "every hour"
	case "@daily", "@midnight":
		return "every day"
	case "@weekly":
		return "every week"
	}
	return "on schedule " + spec
}

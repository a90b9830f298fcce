package bot

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"igrelay/pkg/instagram"
	"igrelay/pkg/telegram"
)

var profileURL = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?instagram\.com/([a-zA-Z0-9_.]+)/?`)

// ExtractUsername returns the username of an Instagram profile URL, or ""
func ExtractUsername(text string) string {
	m := profileURL.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ""
	}
	return m[1]
}

type actionKind int

const (
	actionProfilePic actionKind = iota + 1
	actionStories
	actionHighlights
	actionHighlightPage
	actionHighlight
	actionProfileInfo
)

const (
	cbProfilePic     = "profile_pic"
	cbStories        = "story"
	cbHighlights     = "highlights"
	cbHighlightsNext = "highlights_next_"
	cbHighlightsPrev = "highlights_prev_"
	cbHighlight      = "highlight_"
	cbProfileInfo    = "profile_info"
)

type action struct {
	kind        actionKind
	page        int
	highlightID string
}

func (a action) name() string {
	switch a.kind {
	case actionProfilePic:
		return cbProfilePic
	case actionStories:
		return cbStories
	case actionHighlights, actionHighlightPage:
		return cbHighlights
	case actionHighlight:
		return "highlight"
	case actionProfileInfo:
		return cbProfileInfo
	default:
		return "unknown"
	}
}

func parseCallback(data string) (action, bool) {
	switch data {
	case cbProfilePic:
		return action{kind: actionProfilePic}, true
	case cbStories:
		return action{kind: actionStories}, true
	case cbHighlights:
		return action{kind: actionHighlights}, true
	case cbProfileInfo:
		return action{kind: actionProfileInfo}, true
	}

	for _, prefix := range []string{cbHighlightsNext, cbHighlightsPrev} {
		if rest, ok := strings.CutPrefix(data, prefix); ok {
			page, err := strconv.Atoi(rest)
			if err != nil || page < 0 {
				return action{}, false
			}
			return action{kind: actionHighlightPage, page: page}, true
		}
	}

	if id, ok := strings.CutPrefix(data, cbHighlight); ok && id != "" {
		return action{kind: actionHighlight, highlightID: id}, true
	}
	return action{}, false
}

func mainMenu() [][]telegram.Button {
	return [][]telegram.Button{
		{{Text: "📷 Profile picture", Data: cbProfilePic}, {Text: "📹 Stories", Data: cbStories}},
		{{Text: "🌟 Highlights", Data: cbHighlights}, {Text: "📊 Profile info", Data: cbProfileInfo}},
	}
}

const maxTitleRunes = 15

func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	return string([]rune(title)[:maxTitleRunes]) + "..."
}

// highlightMenu builds one page of the highlight keyboard. page is clamped
// to the available pages; the clamped value is returned.
func highlightMenu(highlights []instagram.Highlight, page, perPage int) ([][]telegram.Button, int) {
	if perPage <= 0 {
		perPage = 10
	}
	lastPage := (len(highlights) - 1) / perPage
	if page > lastPage {
		page = lastPage
	}
	if page < 0 {
		page = 0
	}

	start := page * perPage
	end := min(start+perPage, len(highlights))

	rows := make([][]telegram.Button, 0, end-start+1)
	for _, h := range highlights[start:end] {
		rows = append(rows, []telegram.Button{{Text: "🌟 " + truncateTitle(h.Title), Data: cbHighlight + h.ID}})
	}

	var nav []telegram.Button
	if page > 0 {
		nav = append(nav, telegram.Button{Text: msgHighlightBack, Data: cbHighlightsPrev + strconv.Itoa(page-1)})
	}
	if len(highlights) > end {
		nav = append(nav, telegram.Button{Text: msgHighlightNext, Data: cbHighlightsNext + strconv.Itoa(page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return rows, page
}

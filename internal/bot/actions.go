package bot

import (
	"context"
	"fmt"

	errs "igrelay/pkg/errors"
	"igrelay/pkg/instagram"
	"igrelay/pkg/media"
)

// resolve fetches the profile and reports failures to the chat. ok is false
// when the caller should stop; err is set only for real failures.
func (h *Handler) resolve(ctx context.Context, chatID int64, username, fallback string, needAccess bool) (profile *instagram.Profile, ok bool, err error) {
	profile, err = h.profiles.ResolveProfile(ctx, username)
	if err != nil {
		h.logger.WithError(err).WarnWithFields("Failed to resolve profile", map[string]interface{}{
			"chat_id":  chatID,
			"username": username,
		})
		h.reply(ctx, chatID, userMessage(err, username, fallback))
		return nil, false, err
	}
	if needAccess && !profile.Accessible() {
		h.reply(ctx, chatID, msgPrivate)
		return profile, false, nil
	}
	return profile, true, nil
}

func (h *Handler) sendProfilePicture(ctx context.Context, chatID int64, username string) error {
	profile, ok, err := h.resolve(ctx, chatID, username, msgProfilePicError, true)
	if !ok {
		return err
	}

	area := h.pipeline.NewArea(username + "_profile")
	if err := area.Acquire(); err != nil {
		h.reply(ctx, chatID, msgPrepareFailed)
		return err
	}
	defer func() {
		if err := area.Release(); err != nil {
			h.logger.WithError(err).Warn("Failed to release staging area")
		}
	}()

	path, err := h.profiles.DownloadProfilePicture(ctx, profile, area.Fs(), area.Dir())
	if err != nil {
		h.reply(ctx, chatID, userMessage(err, username, msgProfilePicError))
		return err
	}

	if err := h.messenger.SendDocument(ctx, chatID, path, fmt.Sprintf(msgProfilePic, username)); err != nil {
		h.reply(ctx, chatID, msgProfilePicError)
		return err
	}
	return nil
}

func (h *Handler) sendStories(ctx context.Context, chatID int64, username string) error {
	profile, ok, err := h.resolve(ctx, chatID, username, msgStoriesError, true)
	if !ok {
		return err
	}

	items, err := h.profiles.Stories(ctx, profile)
	if err != nil {
		if errs.IsAccessDenied(err) {
			h.reply(ctx, chatID, msgStoriesDenied)
		} else {
			h.reply(ctx, chatID, userMessage(err, username, msgStoriesError))
		}
		return err
	}

	_, err = h.pipeline.Run(ctx, media.Batch{
		Target:        username,
		Items:         items,
		Pace:          media.PaceStory,
		Chronological: true,
		EmptyMessage:  msgNoStories,
		Summary: func(sent, total int) string {
			return fmt.Sprintf(msgStoriesSummary, sent)
		},
	}, h.recipient(chatID))
	return err
}

func (h *Handler) sendHighlightMenu(ctx context.Context, chatID int64, username string, page, editMessageID int) error {
	// listing is allowed for private profiles; items are checked on selection
	profile, ok, err := h.resolve(ctx, chatID, username, msgHighlightsError, false)
	if !ok {
		return err
	}

	highlights, err := h.profiles.Highlights(ctx, profile)
	if err != nil {
		h.reply(ctx, chatID, userMessage(err, username, msgHighlightsError))
		return err
	}
	if len(highlights) == 0 {
		h.reply(ctx, chatID, msgNoHighlights)
		return nil
	}

	rows, page := highlightMenu(highlights, page, h.perPage)
	text := fmt.Sprintf(msgHighlightsMenu, username, page+1)

	if editMessageID != 0 {
		err := h.messenger.EditMenu(ctx, chatID, editMessageID, text, rows)
		if err == nil {
			return nil
		}
		h.logger.WithError(err).Debug("Failed to edit highlight menu, sending a new one")
	}
	return h.messenger.SendMenu(ctx, chatID, text, rows)
}

func (h *Handler) sendHighlight(ctx context.Context, chatID int64, username, highlightID string) error {
	profile, ok, err := h.resolve(ctx, chatID, username, msgHighlightError, true)
	if !ok {
		return err
	}

	highlights, err := h.profiles.Highlights(ctx, profile)
	if err != nil {
		h.reply(ctx, chatID, userMessage(err, username, msgHighlightError))
		return err
	}

	var highlight *instagram.Highlight
	for i := range highlights {
		if highlights[i].ID == highlightID {
			highlight = &highlights[i]
			break
		}
	}
	if highlight == nil {
		h.reply(ctx, chatID, msgHighlightMissing)
		return nil
	}

	items, err := h.profiles.HighlightItems(ctx, highlight.ID, profile.Username)
	if err != nil {
		h.reply(ctx, chatID, userMessage(err, username, msgHighlightError))
		return err
	}

	title := highlight.Title
	_, err = h.pipeline.Run(ctx, media.Batch{
		Target:       username,
		Items:        items,
		Pace:         media.PaceHighlight,
		Title:        title,
		Ordinal:      true,
		Intro:        fmt.Sprintf(msgHighlightIntro, len(items), title),
		EmptyMessage: msgHighlightEmpty,
		Summary: func(sent, total int) string {
			return fmt.Sprintf(msgHighlightSummary, sent, title)
		},
	}, h.recipient(chatID))
	return err
}

func (h *Handler) sendProfileInfo(ctx context.Context, chatID int64, username string) error {
	profile, ok, err := h.resolve(ctx, chatID, username, msgProfileInfoError, false)
	if !ok {
		return err
	}
	return h.messenger.SendText(ctx, chatID, profileInfo(profile))
}

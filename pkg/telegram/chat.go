package telegram

import (
	"context"

	"igrelay/pkg/media"
)

// Chat binds a Transport to one chat so it can receive a media batch
type Chat struct {
	Transport *Transport
	ID        int64
}

var _ media.Recipient = Chat{}

// Notify sends a text message to the chat
func (c Chat) Notify(ctx context.Context, text string) error {
	return c.Transport.SendText(ctx, c.ID, text)
}

// SendPhoto uploads an image to the chat
func (c Chat) SendPhoto(ctx context.Context, path, caption string) error {
	return c.Transport.SendPhoto(ctx, c.ID, path, caption)
}

// SendVideo uploads a video to the chat
func (c Chat) SendVideo(ctx context.Context, path, caption string) error {
	return c.Transport.SendVideo(ctx, c.ID, path, caption)
}

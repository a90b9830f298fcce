// Package telegram is the outbound transport to the Telegram Bot API.
//
// A Transport throttles sends with a global and a per-chat rate limiter,
// bounds each send by a timeout, and reads uploads from an afero.Fs so the
// staging area can live on any filesystem. Chat adapts a Transport to
// media.Recipient for a single chat.
package telegram

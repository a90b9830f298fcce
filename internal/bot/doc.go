// Package bot is the chat surface of the relay.
//
// A user sends an Instagram profile URL, picks a feature from the inline
// menu, and the Handler runs the matching job on the dispatcher: the profile
// picture as a document, stories or one highlight through the media
// pipeline, or a text summary of the profile. /start_tracking and
// /stop_tracking manage follower tracking of the current profile.
package bot

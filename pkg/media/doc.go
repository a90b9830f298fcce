// Package media relays Instagram stories and highlights to a chat one file
// at a time.
//
// A Pipeline runs each item of a Batch through
//
//	fetch -> validate -> deliver -> clean
//
// inside a uniquely named StagingArea. Every item ends in exactly one
// Outcome; anything other than OutcomeDelivered produces one short notice
// to the chat and the batch moves on. The staging area is removed on every
// exit path, including cancellation and panics.
//
// The scraper plugs in as a Downloader and the chat as a Recipient, so the
// package has no knowledge of Instagram or Telegram APIs.
package media

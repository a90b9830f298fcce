// Package tracker reports follower and following changes of Instagram
// profiles to Telegram chats on a cron schedule.
//
// Subscriptions live in a SQLite database and are rescheduled on Start.
// Each run resolves the profile, lists the relation, diffs it against the
// last checkpoint.Snapshot and sends the added and removed accounts.
package tracker

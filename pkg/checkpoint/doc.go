// Package checkpoint stores follower and following snapshots between
// tracking runs.
//
// Each snapshot is a JSON file named <username>.<relation>.json under
// <data dir>/snapshots. Files are written to a temporary name and renamed
// into place so a crash never leaves a truncated snapshot. A missing file
// and a file with an empty account list are different things: Load returns
// nil for the first and an empty Snapshot for the second.
//
// The default data directory is platform specific:
//   - Linux: $XDG_DATA_HOME/igrelay or ~/.local/share/igrelay
//   - macOS: ~/Library/Application Support/igrelay
//   - Windows: %APPDATA%/igrelay
package checkpoint

package tracker

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"igrelay/pkg/instagram"
)

// Diff returns the accounts present only in current (added) and only in
// previous (removed), each sorted and free of duplicates
func Diff(previous, current []string) (added, removed []string) {
	prev := toSet(previous)
	cur := toSet(current)

	for name := range cur {
		if _, ok := prev[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range prev {
		if _, ok := cur[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

type relationText struct {
	title   string
	added   string
	removed string
}

var relationTexts = map[instagram.Relation]relationText{
	instagram.RelationFollowers: {title: "Followers", added: "new followers", removed: "stopped following"},
	instagram.RelationFollowing: {title: "Following", added: "newly followed", removed: "unfollowed"},
}

// FormatChanges renders a change notification for one relation
func FormatChanges(username string, relation instagram.Relation, added, removed []string) string {
	text := relationTexts[relation]

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s changes for @%s:\n", text.title, username)
	if len(added) > 0 {
		fmt.Fprintf(&b, "➕ %d %s:\n", len(added), text.added)
		writeAccounts(&b, added)
	}
	if len(removed) > 0 {
		fmt.Fprintf(&b, "➖ %d %s:\n", len(removed), text.removed)
		writeAccounts(&b, removed)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeAccounts(b *strings.Builder, names []string) {
	for _, n := range names {
		b.WriteString("@")
		b.WriteString(n)
		b.WriteString("\n")
	}
}

// SplitMessage breaks text on line boundaries into chunks of at most limit
// bytes. A single line longer than limit is cut on a rune boundary.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			cut := runeCut(line, limit)
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// runeCut returns the largest index <= limit that starts a rune, never 0
func runeCut(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return cut
}

package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MentionKind distinguishes user mentions from role mentions.
type MentionKind string

const (
	MentionUser MentionKind = "@"
	MentionRole MentionKind = "@&"
)

// Mention references a platform user or role. Polls use mentions to express
// their access lists; a mention is never mutated after parsing.
type Mention struct {
	Kind MentionKind `json:"kind"`
	ID   int64       `json:"id"`
}

func (m Mention) String() string {
	return fmt.Sprintf("<%s%d>", m.Kind, m.ID)
}

// Matches reports whether the mention grants access to the given user, who
// holds the given role ids.
func (m Mention) Matches(userID int64, roleIDs []int64) bool {
	if m.Kind == MentionUser {
		return m.ID == userID
	}
	for _, id := range roleIDs {
		if m.ID == id {
			return true
		}
	}
	return false
}

var mentionRegex = regexp.MustCompile(`<@([!&])?(\d+)>`)

// ParseMentions extracts every user and role mention from a string. Unparseable
// fragments are skipped rather than erroring, mirroring how chat platforms
// treat malformed mentions as plain text.
func ParseMentions(s string) []Mention {
	var mentions []Mention
	for _, tup := range mentionRegex.FindAllStringSubmatch(s, -1) {
		id, err := strconv.ParseInt(tup[2], 10, 64)
		if err != nil {
			continue
		}
		kind := MentionUser
		if tup[1] == "&" {
			kind = MentionRole
		}
		mentions = append(mentions, Mention{Kind: kind, ID: id})
	}
	return mentions
}

// ParseMention parses a single formatted mention such as "<@123>" or "<@&456>".
func ParseMention(s string) (Mention, bool) {
	mentions := ParseMentions(s)
	if len(mentions) != 1 {
		return Mention{}, false
	}
	return mentions[0], true
}

// MentionsString joins mentions for presentation, e.g. "<@1>, <@&2>".
func MentionsString(mentions []Mention) string {
	parts := make([]string, len(mentions))
	for i, m := range mentions {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

func formatMentions(mentions []Mention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.String()
	}
	return out
}

func parseMentionList(raw []string) []Mention {
	var out []Mention
	for _, s := range raw {
		if m, ok := ParseMention(s); ok {
			out = append(out, m)
		}
	}
	return out
}

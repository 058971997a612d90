package http

import (
	"sort"
	"time"

	"github.com/ballotd/ballotd/internal/core/domain"
	"github.com/ballotd/ballotd/internal/core/ports"
)

type optionView struct {
	ID        int64   `json:"id"`
	Label     string  `json:"label"`
	VoteCount int     `json:"vote_count"`
	Voters    []int64 `json:"voters,omitempty"`
	AuthorID  *int64  `json:"author_id,omitempty"`
	Prefix    string  `json:"prefix,omitempty"`
}

type pollView struct {
	ID                 int64        `json:"id"`
	Question           string       `json:"question"`
	Options            []optionView `json:"options"`
	Expires            *time.Time   `json:"expires,omitempty"`
	AllowMultipleVotes bool         `json:"allow_multiple_votes"`
	IsOpen             bool         `json:"is_open"`
	IsExpired          bool         `json:"is_expired"`
	AllowedVoteViewers string       `json:"allowed_vote_viewers,omitempty"`
	AllowedEditors     string       `json:"allowed_editors,omitempty"`
	AllowedVoters      string       `json:"allowed_voters,omitempty"`
	ChannelID          int64        `json:"channel_id,omitempty"`
	MessageID          int64        `json:"message_id,omitempty"`
	CreatorID          int64        `json:"creator_id"`
}

// renderPoll builds the read model the presentation layer consumes. Voter
// lists are included only for callers on the poll's vote-viewers list; closed
// polls carry ranking prefixes for their options.
func renderPoll(poll *domain.Poll, caller ports.Caller) pollView {
	options := poll.Options()
	showVoters := poll.UserCanSeeVotes(caller.UserID, caller.RoleIDs)

	var prefixes []string
	if poll.IsExpired() {
		prefixes = rankPrefixes(options)
	}

	views := make([]optionView, len(options))
	for i, opt := range options {
		view := optionView{
			ID:        opt.ID(),
			Label:     opt.Label(),
			VoteCount: opt.VoteCount(),
			AuthorID:  opt.AuthorID(),
		}
		if showVoters {
			view.Voters = opt.Voters()
		}
		if prefixes != nil {
			view.Prefix = prefixes[i]
		}
		views[i] = view
	}

	return pollView{
		ID:                 poll.ID(),
		Question:           poll.Question(),
		Options:            views,
		Expires:            poll.Expires(),
		AllowMultipleVotes: poll.AllowMultipleVotes(),
		IsOpen:             poll.IsOpen(),
		IsExpired:          poll.IsExpired(),
		AllowedVoteViewers: domain.MentionsString(poll.AllowedVoteViewers()),
		AllowedEditors:     domain.MentionsString(poll.AllowedEditors()),
		AllowedVoters:      domain.MentionsString(poll.AllowedVoters()),
		ChannelID:          poll.ChannelID(),
		MessageID:          poll.MessageID(),
		CreatorID:          poll.CreatorID(),
	}
}

var medals = []string{"🥇", "🥈", "🥉"}

// rankPrefixes awards medals to the options holding the top three distinct
// vote counts; everything else gets the consolation potato.
func rankPrefixes(options []*domain.Option) []string {
	distinct := make(map[int]struct{}, len(options))
	for _, opt := range options {
		distinct[opt.VoteCount()] = struct{}{}
	}
	top := make([]int, 0, len(distinct))
	for count := range distinct {
		top = append(top, count)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(top)))
	if len(top) > len(medals) {
		top = top[:len(medals)]
	}

	prefixes := make([]string, len(options))
	for i, opt := range options {
		prefixes[i] = "🥔"
		for rank, count := range top {
			if opt.VoteCount() == count {
				prefixes[i] = medals[rank]
				break
			}
		}
	}
	return prefixes
}

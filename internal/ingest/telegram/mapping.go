package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
)

// Reaction keys for non-emoji reactions.
const (
	reactionCustomEmoji = "ReactionCustomEmoji"
	reactionPaid        = "ReactionPaid"
)

// authorResolver maps message senders to author fields, caching channel
// follower counts for the lifetime of one collection.
type authorResolver struct {
	api       API
	logger    *zerolog.Logger
	users     map[int64]*tg.User
	channels  map[int64]*tg.Channel
	followers map[int64]*int64
}

func newAuthorResolver(api API, logger *zerolog.Logger) *authorResolver {
	return &authorResolver{
		api:       api,
		logger:    logger,
		users:     make(map[int64]*tg.User),
		channels:  make(map[int64]*tg.Channel),
		followers: make(map[int64]*int64),
	}
}

func (r *authorResolver) add(chats []tg.ChatClass, users []tg.UserClass) {
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			r.users[user.ID] = user
		}
	}

	for _, ch := range chats {
		if channel, ok := ch.(*tg.Channel); ok {
			r.channels[channel.ID] = channel
		}
	}
}

func (r *authorResolver) comment(ctx context.Context, msg *tg.Message) domain.CommentData {
	c := domain.CommentData{
		PlatformID:   strconv.Itoa(msg.ID),
		Content:      msg.Message,
		RepliesCount: repliesCount(msg),
		SharesCount:  optionalInt(msg.GetForwards()),
		ViewsCount:   optionalInt(msg.GetViews()),
		Reactions:    extractReactions(msg),
		PublishedAt:  unixPtr(msg.Date),
	}

	if header, ok := msg.ReplyTo.(*tg.MessageReplyHeader); ok {
		_, hasTop := header.GetReplyToTopID()
		parent, hasParent := header.GetReplyToMsgID()

		if hasTop && hasParent {
			c.IsReply = true
			c.ParentPlatformID = strPtr(strconv.Itoa(parent))
		}
	}

	from, hasFrom := msg.GetFromID()

	switch peer := from.(type) {
	case *tg.PeerUser:
		c.AuthorPlatformID = strPtr(strconv.FormatInt(peer.UserID, 10))

		if user, ok := r.users[peer.UserID]; ok {
			c.AuthorUsername = optionalString(user.Username)
			c.AuthorFullName = optionalString(strings.TrimSpace(user.FirstName + " " + user.LastName))
			c.AuthorVerified = boolPtr(user.Verified)
		}
	case *tg.PeerChannel:
		c.AuthorPlatformID = strPtr(strconv.FormatInt(peer.ChannelID, 10))

		if channel, ok := r.channels[peer.ChannelID]; ok {
			r.fillChannelAuthor(&c, channel)
			c.AuthorFollowersCount = r.channelFollowers(ctx, channel)
		}
	}

	// No sender: an anonymous admin post, attributed to the discussion peer.
	if !hasFrom {
		if peer, ok := msg.PeerID.(*tg.PeerChannel); ok {
			if channel, ok := r.channels[peer.ChannelID]; ok {
				c.AuthorPlatformID = strPtr(strconv.FormatInt(channel.ID, 10))
				r.fillChannelAuthor(&c, channel)
				c.AuthorFollowersCount = optionalInt(channel.GetParticipantsCount())
			}
		}
	}

	return c
}

func (r *authorResolver) fillChannelAuthor(c *domain.CommentData, channel *tg.Channel) {
	c.AuthorUsername = optionalString(channel.Username)
	c.AuthorFullName = optionalString(channel.Title)
	c.AuthorVerified = boolPtr(channel.Verified)
}

func (r *authorResolver) channelFollowers(ctx context.Context, channel *tg.Channel) *int64 {
	if n, ok := r.followers[channel.ID]; ok {
		return n
	}

	var count *int64

	full, err := r.api.ChannelsGetFullChannel(ctx, channel.AsInput())
	if err != nil {
		r.logger.Warn().Err(err).Int64("channel_id", channel.ID).Msg("could not get followers count")
	} else if cf, ok := full.FullChat.(*tg.ChannelFull); ok {
		count = optionalInt(cf.GetParticipantsCount())
	}

	r.followers[channel.ID] = count

	return count
}

func extractReactions(msg *tg.Message) map[string]int64 {
	reactions, ok := msg.GetReactions()
	if !ok || len(reactions.Results) == 0 {
		return nil
	}

	out := make(map[string]int64, len(reactions.Results))

	for _, rc := range reactions.Results {
		switch r := rc.Reaction.(type) {
		case *tg.ReactionEmoji:
			out[r.Emoticon] += int64(rc.Count)
		case *tg.ReactionCustomEmoji:
			out[reactionCustomEmoji] += int64(rc.Count)
		case *tg.ReactionPaid:
			out[reactionPaid] += int64(rc.Count)
		}
	}

	return out
}

func repliesCount(msg *tg.Message) *int64 {
	replies, ok := msg.GetReplies()
	if !ok {
		return nil
	}

	n := int64(replies.Replies)

	return &n
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func optionalInt(v int, ok bool) *int64 {
	if !ok {
		return nil
	}

	n := int64(v)

	return &n
}

func unixPtr(sec int) *time.Time {
	if sec == 0 {
		return nil
	}

	t := time.Unix(int64(sec), 0).UTC()

	return &t
}

package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

type mockAPI struct {
	channel      *tg.Channel
	participants int
	messages     map[int]*tg.Message
	replyPages   []tg.MessagesMessagesClass
	replyErrs    []error
	replyReqs    []tg.MessagesGetRepliesRequest
	fullCalls    int
}

func (m *mockAPI) ContactsResolveUsername(_ context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	if m.channel == nil || m.channel.Username != req.Username {
		return &tg.ContactsResolvedPeer{}, nil
	}

	return &tg.ContactsResolvedPeer{Chats: []tg.ChatClass{m.channel}}, nil
}

func (m *mockAPI) ChannelsGetFullChannel(_ context.Context, _ tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	m.fullCalls++

	full := &tg.ChannelFull{}
	full.SetParticipantsCount(m.participants)

	return &tg.MessagesChatFull{FullChat: full}, nil
}

func (m *mockAPI) ChannelsGetMessages(_ context.Context, req *tg.ChannelsGetMessagesRequest) (tg.MessagesMessagesClass, error) {
	var out []tg.MessageClass

	for _, in := range req.ID {
		if id, ok := in.(*tg.InputMessageID); ok {
			if msg, ok := m.messages[id.ID]; ok {
				out = append(out, msg)
			} else {
				out = append(out, &tg.MessageEmpty{ID: id.ID})
			}
		}
	}

	return &tg.MessagesChannelMessages{Messages: out}, nil
}

func (m *mockAPI) MessagesGetReplies(_ context.Context, req *tg.MessagesGetRepliesRequest) (tg.MessagesMessagesClass, error) {
	i := len(m.replyReqs)
	m.replyReqs = append(m.replyReqs, *req)

	if i < len(m.replyErrs) && m.replyErrs[i] != nil {
		return nil, m.replyErrs[i]
	}

	if i < len(m.replyPages) && m.replyPages[i] != nil {
		return m.replyPages[i], nil
	}

	return &tg.MessagesChannelMessages{}, nil
}

type staticSource struct{ api API }

func (s staticSource) API(context.Context) (API, error) { return s.api, nil }

func newTestCollector(api API, pageSize int) (*Collector, *[]time.Duration) {
	var waits []time.Duration

	c := NewCollector(staticSource{api: api}, config.TelegramMTProtoConfig{
		TGRepliesPageSize:   pageSize,
		TGRepliesPageDelay:  2 * time.Second,
		TGFloodWaitMaxDelay: time.Minute,
	}, nil)
	c.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)

		return nil
	}

	return c, &waits
}

func newsChannel() *tg.Channel {
	return &tg.Channel{ID: 10, AccessHash: 99, Title: "News", Username: "news", Verified: true}
}

func reply(id, date int, fromUser int64) *tg.Message {
	msg := &tg.Message{ID: id, Date: date, Message: "comment"}
	msg.SetFromID(&tg.PeerUser{UserID: fromUser})

	return msg
}

func TestGetPost(t *testing.T) {
	msg := &tg.Message{ID: 5, Date: 1700000000, Message: "hello"}
	msg.SetViews(1200)
	msg.SetForwards(7)
	msg.SetReplies(tg.MessageReplies{Replies: 3})

	var reactions tg.MessageReactions
	reactions.Results = []tg.ReactionCount{
		{Reaction: &tg.ReactionEmoji{Emoticon: "👍"}, Count: 4},
		{Reaction: &tg.ReactionCustomEmoji{DocumentID: 1}, Count: 2},
	}
	msg.SetReactions(reactions)

	api := &mockAPI{channel: newsChannel(), participants: 5000, messages: map[int]*tg.Message{5: msg}}
	c, _ := newTestCollector(api, 100)

	post, err := c.GetPost(context.Background(), "https://t.me/news/5")
	require.NoError(t, err)

	assert.Equal(t, "5", *post.PlatformID)
	assert.Equal(t, "hello", *post.Content)
	assert.Equal(t, "10", *post.AuthorPlatformID)
	assert.Equal(t, "News", *post.AuthorFullName)
	assert.Equal(t, int64(5000), *post.AuthorFollowersCount)
	assert.True(t, *post.AuthorVerified)
	assert.Equal(t, int64(1200), *post.ViewsCount)
	assert.Equal(t, int64(7), *post.SharesCount)
	assert.Equal(t, int64(3), *post.CommentsCount)
	assert.Equal(t, map[string]int64{"👍": 4, reactionCustomEmoji: 2}, post.Reactions)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *post.PublishedAt)
}

func TestGetPost_Errors(t *testing.T) {
	api := &mockAPI{channel: newsChannel(), messages: map[int]*tg.Message{}}
	c, _ := newTestCollector(api, 100)

	_, err := c.GetPost(context.Background(), "https://t.me/news/6")
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)

	_, err = c.GetPost(context.Background(), "https://t.me/other/6")
	assert.ErrorIs(t, err, apperrors.ErrChannelNotFound)

	_, err = c.GetPost(context.Background(), "https://example.com/x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidURL)
}

func TestGetComments_PaginatesAndSortsOldestFirst(t *testing.T) {
	users := []tg.UserClass{&tg.User{ID: 1, FirstName: "Ann", LastName: "Lee", Username: "ann"}}

	api := &mockAPI{
		channel: newsChannel(),
		replyErrs: []error{
			nil,
			tgerr.New(420, "FLOOD_WAIT_3"),
		},
		replyPages: []tg.MessagesMessagesClass{
			&tg.MessagesChannelMessages{
				Messages: []tg.MessageClass{reply(30, 300, 1), reply(29, 290, 1)},
				Users:    users,
			},
			nil,
			&tg.MessagesChannelMessages{
				Messages: []tg.MessageClass{reply(28, 280, 2)},
			},
		},
	}

	c, waits := newTestCollector(api, 2)

	comments, err := c.GetComments(context.Background(), "https://t.me/news/5")
	require.NoError(t, err)
	require.Len(t, comments, 3)

	assert.Equal(t, "28", comments[0].PlatformID)
	assert.Equal(t, "29", comments[1].PlatformID)
	assert.Equal(t, "30", comments[2].PlatformID)

	assert.Equal(t, "ann", *comments[2].AuthorUsername)
	assert.Equal(t, "Ann Lee", *comments[2].AuthorFullName)
	assert.Equal(t, "2", *comments[0].AuthorPlatformID)
	assert.Nil(t, comments[0].AuthorUsername)

	require.Len(t, api.replyReqs, 3)
	assert.Equal(t, 0, api.replyReqs[0].OffsetID)
	assert.Equal(t, 29, api.replyReqs[1].OffsetID)
	assert.Equal(t, 29, api.replyReqs[2].OffsetID, "flood-waited page is retried")
	assert.Equal(t, 5, api.replyReqs[0].MsgID)

	assert.Equal(t, []time.Duration{2 * time.Second, 8 * time.Second}, *waits)
}

func TestGetComments_ReplyDetectionAndReactions(t *testing.T) {
	nested := reply(41, 410, 1)

	var header tg.MessageReplyHeader
	header.SetReplyToMsgID(40)
	header.SetReplyToTopID(5)
	nested.ReplyTo = &header

	var topHeader tg.MessageReplyHeader
	topHeader.SetReplyToMsgID(5)

	top := reply(40, 400, 1)
	top.ReplyTo = &topHeader

	var reactions tg.MessageReactions
	reactions.Results = []tg.ReactionCount{{Reaction: &tg.ReactionPaid{}, Count: 1}}
	top.SetReactions(reactions)

	api := &mockAPI{
		channel: newsChannel(),
		replyPages: []tg.MessagesMessagesClass{
			&tg.MessagesChannelMessages{Messages: []tg.MessageClass{nested, top}},
		},
	}

	c, _ := newTestCollector(api, 100)

	comments, err := c.GetComments(context.Background(), "https://t.me/news/5")
	require.NoError(t, err)
	require.Len(t, comments, 2)

	assert.False(t, comments[0].IsReply)
	assert.Nil(t, comments[0].ParentPlatformID)
	assert.Equal(t, map[string]int64{reactionPaid: 1}, comments[0].Reactions)

	assert.True(t, comments[1].IsReply)
	assert.Equal(t, "40", *comments[1].ParentPlatformID)
}

func TestGetComments_ChannelAuthorFollowersCached(t *testing.T) {
	author := &tg.Channel{ID: 77, Title: "Fan Club", Username: "fans"}

	m1 := &tg.Message{ID: 1, Date: 1, Message: "a"}
	m1.SetFromID(&tg.PeerChannel{ChannelID: 77})
	m2 := &tg.Message{ID: 2, Date: 2, Message: "b"}
	m2.SetFromID(&tg.PeerChannel{ChannelID: 77})

	api := &mockAPI{
		channel:      newsChannel(),
		participants: 321,
		replyPages: []tg.MessagesMessagesClass{
			&tg.MessagesChannelMessages{Messages: []tg.MessageClass{m2, m1}, Chats: []tg.ChatClass{author}},
		},
	}

	c, _ := newTestCollector(api, 100)

	comments, err := c.GetComments(context.Background(), "https://t.me/news/5")
	require.NoError(t, err)
	require.Len(t, comments, 2)

	assert.Equal(t, "Fan Club", *comments[0].AuthorFullName)
	assert.Equal(t, int64(321), *comments[1].AuthorFollowersCount)
	assert.Equal(t, 1, api.fullCalls)
}

func TestGetComments_FloodWaitOverLimit(t *testing.T) {
	api := &mockAPI{
		channel:   newsChannel(),
		replyErrs: []error{tgerr.New(420, "FLOOD_WAIT_600")},
	}

	c, _ := newTestCollector(api, 100)

	_, err := c.GetComments(context.Background(), "https://t.me/news/5")
	require.Error(t, err)
	assert.True(t, tgerr.Is(err, floodWaitType))
}

func TestGetComments_OtherErrorKeepsCollected(t *testing.T) {
	api := &mockAPI{
		channel: newsChannel(),
		replyErrs: []error{nil, errors.New("rpc timeout")},
		replyPages: []tg.MessagesMessagesClass{
			&tg.MessagesChannelMessages{Messages: []tg.MessageClass{reply(2, 20, 1), reply(1, 10, 1)}},
		},
	}

	c, _ := newTestCollector(api, 2)

	comments, err := c.GetComments(context.Background(), "https://t.me/news/5")
	require.NoError(t, err)
	assert.Len(t, comments, 2)
}

func TestPhoneHelpers(t *testing.T) {
	assert.Equal(t, "+15551234567", sanitizePhone(" +1 (555) 123-4567 "))
	assert.Equal(t, "+15****67", maskPhone("+15551234567"))
	assert.Equal(t, "****", maskPhone("123"))
}

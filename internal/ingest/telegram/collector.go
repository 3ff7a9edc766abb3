package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

// API is the subset of tg.Client used for collection.
type API interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error)
	ChannelsGetMessages(ctx context.Context, request *tg.ChannelsGetMessagesRequest) (tg.MessagesMessagesClass, error)
	MessagesGetReplies(ctx context.Context, request *tg.MessagesGetRepliesRequest) (tg.MessagesMessagesClass, error)
}

// APISource hands out a connected API client.
type APISource interface {
	API(ctx context.Context) (API, error)
}

var _ APISource = (*Client)(nil)

const (
	floodWaitType    = "FLOOD_WAIT"
	floodWaitPadding = 5 * time.Second
	defaultPageSize  = 100
)

// Collector fetches a post and its discussion replies.
type Collector struct {
	source    APISource
	pageSize  int
	pageDelay time.Duration
	floodMax  time.Duration
	logger    *zerolog.Logger
	wait      func(ctx context.Context, d time.Duration) error
}

// NewCollector creates a Collector using the TG_REPLIES_* paging settings.
func NewCollector(source APISource, cfg config.TelegramMTProtoConfig, logger *zerolog.Logger) *Collector {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	pageSize := cfg.TGRepliesPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Collector{
		source:    source,
		pageSize:  pageSize,
		pageDelay: cfg.TGRepliesPageDelay,
		floodMax:  cfg.TGFloodWaitMaxDelay,
		logger:    logger,
		wait:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetPost returns the channel message addressed by url with channel metadata.
func (c *Collector) GetPost(ctx context.Context, url string) (*domain.PostData, error) {
	link, ok := domain.ParseTelegramURL(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidURL, url)
	}

	api, err := c.source.API(ctx)
	if err != nil {
		return nil, err
	}

	channel, err := c.resolveChannel(ctx, api, link.Username)
	if err != nil {
		return nil, err
	}

	full, err := api.ChannelsGetFullChannel(ctx, channel.AsInput())
	if err != nil {
		return nil, fmt.Errorf("get full channel %s: %w", link.Username, err)
	}

	msg, err := c.getMessage(ctx, api, channel, link.MessageID)
	if err != nil {
		return nil, err
	}

	post := &domain.PostData{
		PlatformID:       strPtr(strconv.Itoa(msg.ID)),
		Content:          strPtr(msg.Message),
		AuthorPlatformID: strPtr(strconv.FormatInt(channel.ID, 10)),
		AuthorUsername:   optionalString(channel.Username),
		AuthorFullName:   optionalString(channel.Title),
		AuthorVerified:   boolPtr(channel.Verified),
		CommentsCount:    repliesCount(msg),
		SharesCount:      optionalInt(msg.GetForwards()),
		ViewsCount:       optionalInt(msg.GetViews()),
		Reactions:        extractReactions(msg),
		PublishedAt:      unixPtr(msg.Date),
	}

	if cf, ok := full.FullChat.(*tg.ChannelFull); ok {
		post.AuthorFollowersCount = optionalInt(cf.GetParticipantsCount())
	}

	return post, nil
}

// GetComments pages through the discussion replies of the post at url and
// returns them oldest first.
func (c *Collector) GetComments(ctx context.Context, url string) ([]domain.CommentData, error) {
	link, ok := domain.ParseTelegramURL(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidURL, url)
	}

	api, err := c.source.API(ctx)
	if err != nil {
		return nil, err
	}

	channel, err := c.resolveChannel(ctx, api, link.Username)
	if err != nil {
		return nil, err
	}

	authors := newAuthorResolver(api, c.logger)

	var (
		comments []commentWithDate
		offsetID int
		page     int
	)

	for {
		page++

		c.logger.Debug().Str("channel", link.Username).Int("page", page).Int("offset_id", offsetID).Msg("fetching replies")

		res, err := api.MessagesGetReplies(ctx, &tg.MessagesGetRepliesRequest{
			Peer:     channel.AsInputPeer(),
			MsgID:    link.MessageID,
			OffsetID: offsetID,
			Limit:    c.pageSize,
		})
		if err != nil {
			retry, waitErr := c.handleFloodWait(ctx, err)
			if waitErr != nil {
				return nil, waitErr
			}

			if retry {
				page--

				continue
			}

			c.logger.Error().Err(err).Str("channel", link.Username).Int("page", page).Msg("fetching replies failed, keeping collected comments")

			break
		}

		messages, chats, users, ok := unpackMessages(res)
		if !ok || len(messages) == 0 {
			break
		}

		authors.add(chats, users)

		for _, m := range messages {
			msg, ok := m.(*tg.Message)
			if !ok {
				continue
			}

			offsetID = msg.ID
			comments = append(comments, commentWithDate{
				data: authors.comment(ctx, msg),
				date: msg.Date,
			})
		}

		if len(messages) < c.pageSize {
			break
		}

		if err := c.wait(ctx, c.pageDelay); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(comments, func(i, j int) bool { return comments[i].date < comments[j].date })

	out := make([]domain.CommentData, len(comments))
	for i := range comments {
		out[i] = comments[i].data
	}

	c.logger.Info().Str("channel", link.Username).Int("message_id", link.MessageID).Int("comments", len(out)).Int("pages", page).Msg("collected telegram comments")

	return out, nil
}

type commentWithDate struct {
	data domain.CommentData
	date int
}

// handleFloodWait sleeps out a FLOOD_WAIT and reports whether to retry.
func (c *Collector) handleFloodWait(ctx context.Context, err error) (bool, error) {
	rpcErr, ok := tgerr.As(err)
	if !ok || rpcErr.Type != floodWaitType {
		return false, nil
	}

	delay := time.Duration(rpcErr.Argument)*time.Second + floodWaitPadding
	if c.floodMax > 0 && delay > c.floodMax {
		return false, fmt.Errorf("flood wait of %s exceeds limit %s: %w", delay, c.floodMax, err)
	}

	c.logger.Warn().Int("seconds", rpcErr.Argument).Msg("flood wait")

	if err := c.wait(ctx, delay); err != nil {
		return false, err
	}

	return true, nil
}

func (c *Collector) resolveChannel(ctx context.Context, api API, username string) (*tg.Channel, error) {
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("resolve username %s: %w", username, err)
	}

	for _, chat := range resolved.Chats {
		if channel, ok := chat.(*tg.Channel); ok {
			return channel, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", apperrors.ErrChannelNotFound, username)
}

func (c *Collector) getMessage(ctx context.Context, api API, channel *tg.Channel, id int) (*tg.Message, error) {
	res, err := api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: channel.AsInput(),
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: id}},
	})
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}

	messages, _, _, _ := unpackMessages(res)

	for _, m := range messages {
		if msg, ok := m.(*tg.Message); ok && msg.ID == id {
			return msg, nil
		}
	}

	return nil, fmt.Errorf("%w: %d", apperrors.ErrMessageNotFound, id)
}

func unpackMessages(res tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.ChatClass, []tg.UserClass, bool) {
	switch m := res.(type) {
	case *tg.MessagesMessages:
		return m.Messages, m.Chats, m.Users, true
	case *tg.MessagesMessagesSlice:
		return m.Messages, m.Chats, m.Users, true
	case *tg.MessagesChannelMessages:
		return m.Messages, m.Chats, m.Users, true
	default:
		return nil, nil, nil, false
	}
}

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/patrickmn/go-cache"
)

// PhotoAPI is the part of the Bot API the avatar lookup needs. *bot.Bot
// satisfies it.
type PhotoAPI interface {
	GetUserProfilePhotos(ctx context.Context, params *bot.GetUserProfilePhotosParams) (*models.UserProfilePhotos, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// AvatarResolver finds the download URL of a user's first profile photo.
// Answers, including "no photo", are cached per user; lookup errors are not.
type AvatarResolver struct {
	api   PhotoAPI
	cache *cache.Cache
	log   *slog.Logger
}

// NewAvatarResolver builds a resolver. A non-positive ttl disables caching.
func NewAvatarResolver(api PhotoAPI, ttl time.Duration, logger *slog.Logger) *AvatarResolver {
	r := &AvatarResolver{api: api, log: logger.With("component", "avatar_resolver")}
	if ttl > 0 {
		r.cache = cache.New(ttl, 2*ttl)
	}
	return r
}

// AvatarURL returns the avatar URL of userID, or nil when the user has no photo.
func (r *AvatarResolver) AvatarURL(ctx context.Context, userID string) (*string, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(userID); ok {
			return urlOrNil(v.(string)), nil //nolint:forcetypeassert // only strings are stored
		}
	}

	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram user id %q: %w", userID, err)
	}

	url, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.SetDefault(userID, url)
	}
	r.log.DebugContext(ctx, "Avatar resolved", "user_id", userID, "has_avatar", url != "")
	return urlOrNil(url), nil
}

func (r *AvatarResolver) lookup(ctx context.Context, userID int64) (string, error) {
	photos, err := r.api.GetUserProfilePhotos(ctx, &bot.GetUserProfilePhotosParams{UserID: userID, Limit: 1})
	if err != nil {
		return "", fmt.Errorf("get profile photos: %w", err)
	}
	if photos == nil || photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return "", nil
	}

	file, err := r.api.GetFile(ctx, &bot.GetFileParams{FileID: photos.Photos[0][0].FileID})
	if err != nil {
		return "", fmt.Errorf("get photo file: %w", err)
	}
	if file.FilePath == "" {
		return "", nil
	}
	return r.api.FileDownloadLink(file), nil
}

func urlOrNil(url string) *string {
	if url == "" {
		return nil
	}
	return &url
}

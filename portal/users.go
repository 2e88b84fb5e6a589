package portal

import (
	"context"
	"time"

	"github.com/jrsteele09/go-brief-portal/cache"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/pkg/errors"
)

const (
	userStaleTime     = 10 * time.Minute
	unknownClientName = "Unknown Client"
)

// GetUser returns a user's public profile.
func (s *Service) GetUser(ctx context.Context, id string) (model.User, error) {
	if !validID(id) {
		return model.User{}, invalidID("GetUser", id)
	}
	user, err := cache.Fetch(ctx, s.cache, cache.Query[model.User]{
		Key: UserKey(id),
		Fetch: func(ctx context.Context) (model.User, error) {
			var user model.User
			err := s.gateway.Get(ctx, "/users/"+id, &user)
			return user, err
		},
		StaleTime: userStaleTime,
		Retry:     s.retry(2),
	})
	return user, errors.Wrap(err, "[Service.GetUser]")
}

// ClientName is the display name of a client, falling back to the id and
// then to a placeholder when the profile cannot be loaded.
func (s *Service) ClientName(ctx context.Context, clientID string) string {
	if clientID == "" {
		return unknownClientName
	}
	user, err := s.GetUser(ctx, clientID)
	if err != nil {
		s.logger.Debug().Err(err).Str("client", clientID).Msg("client name unavailable")
		return clientID
	}
	if user.Name == "" {
		return clientID
	}
	return user.Name
}

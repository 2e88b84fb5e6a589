package portal

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-brief-portal/cache"
	"github.com/jrsteele09/go-brief-portal/gateway"
	apperrors "github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/pkg/errors"
)

const (
	discussionStaleTime = 2 * time.Minute
	searchStaleTime     = time.Minute
	// TempIDPrefix marks a message that the backend has not yet accepted.
	TempIDPrefix = "temp-"
)

func discussions(list model.DiscussionList) []model.Discussion {
	if list.Discussions == nil {
		return []model.Discussion{}
	}
	return list.Discussions
}

// BriefDiscussions returns the message thread of a brief, oldest first.
func (s *Service) BriefDiscussions(ctx context.Context, briefID string) ([]model.Discussion, error) {
	if !validID(briefID) {
		return nil, invalidID("BriefDiscussions", briefID)
	}
	thread, err := cache.Fetch(ctx, s.cache, cache.Query[[]model.Discussion]{
		Key: BriefDiscussionsKey(briefID),
		Fetch: func(ctx context.Context) ([]model.Discussion, error) {
			var list model.DiscussionList
			if err := s.gateway.Get(ctx, "/briefs/"+briefID+"/discussions", &list); err != nil {
				return nil, err
			}
			return discussions(list), nil
		},
		StaleTime: discussionStaleTime,
		Retry:     s.retry(3),
	})
	return thread, errors.Wrap(err, "[Service.BriefDiscussions]")
}

// MyDiscussions returns the messages the signed in user has written.
func (s *Service) MyDiscussions(ctx context.Context) ([]model.Discussion, error) {
	mine, err := cache.Fetch(ctx, s.cache, cache.Query[[]model.Discussion]{
		Key: MyDiscussionsKey,
		Fetch: func(ctx context.Context) ([]model.Discussion, error) {
			var list model.DiscussionList
			if err := s.gateway.Get(ctx, "/discussions/my", &list); err != nil {
				return nil, err
			}
			return discussions(list), nil
		},
		StaleTime: discussionStaleTime,
		Retry:     s.retry(3),
	})
	return mine, errors.Wrap(err, "[Service.MyDiscussions]")
}

// SearchDiscussions finds messages containing query. A blank query matches
// nothing and is answered without a backend call.
func (s *Service) SearchDiscussions(ctx context.Context, query string) ([]model.Discussion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Discussion{}, nil
	}
	found, err := cache.Fetch(ctx, s.cache, cache.Query[[]model.Discussion]{
		Key: SearchKey(query),
		Fetch: func(ctx context.Context) ([]model.Discussion, error) {
			var list model.DiscussionList
			err := s.gateway.Do(ctx, gateway.Request{
				Method: http.MethodGet,
				Path:   "/discussions/search",
				Query:  url.Values{"q": {query}},
			}, &list)
			if err != nil {
				return nil, err
			}
			return discussions(list), nil
		},
		StaleTime: searchStaleTime,
		Retry:     s.retry(2),
	})
	return found, errors.Wrap(err, "[Service.SearchDiscussions]")
}

// PostDiscussion adds a message to a brief's thread. When the thread is
// cached the message appears in it at once under a temporary id; it is
// swapped for the stored message on success and taken out again on failure.
// A cached brief detail gets the stored message once the post succeeds.
func (s *Service) PostDiscussion(ctx context.Context, briefID, message string) (model.Discussion, error) {
	if !validID(briefID) {
		return model.Discussion{}, invalidID("PostDiscussion", briefID)
	}
	if strings.TrimSpace(message) == "" {
		return model.Discussion{}, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Service.PostDiscussion] empty message")
	}

	key := BriefDiscussionsKey(briefID)
	temp := model.Discussion{
		ID:        TempIDPrefix + uuid.NewString(),
		BriefID:   briefID,
		Message:   message,
		Timestamp: s.nowFunc(),
	}
	if user := s.currentUser(ctx); user != nil {
		temp.UserID = user.ID
		temp.IsFromAdmin = user.IsAdmin()
		temp.User = &model.Author{Name: user.Name, Email: user.Email}
	}
	optimistic := cache.Update(s.cache, key, func(thread []model.Discussion) []model.Discussion {
		return append(append([]model.Discussion(nil), thread...), temp)
	})

	var posted model.Discussion
	err := s.gateway.Post(ctx, "/briefs/"+briefID+"/discussions", model.CreateDiscussionRequest{Message: message}, &posted)
	if err != nil {
		if optimistic {
			cache.Update(s.cache, key, func(thread []model.Discussion) []model.Discussion {
				return without(thread, temp.ID)
			})
		}
		return model.Discussion{}, s.fail("PostDiscussion", err, DiscussionErrorMessage)
	}

	if optimistic {
		cache.Update(s.cache, key, func(thread []model.Discussion) []model.Discussion {
			return replace(thread, temp.ID, posted)
		})
	}
	cache.Update(s.cache, BriefDetailKey(briefID), func(b model.Brief) model.Brief {
		b.Discussions = replace(b.Discussions, temp.ID, posted)
		return b
	})
	s.cache.Invalidate(MyDiscussionsKey)
	s.cache.Invalidate(SearchPrefix)
	s.cache.Invalidate(NotificationsPrefix)
	return posted, nil
}

// DeleteDiscussion removes a message. Every cached thread, search result and
// brief detail holding it is patched.
func (s *Service) DeleteDiscussion(ctx context.Context, id string) error {
	if !validID(id) {
		return invalidID("DeleteDiscussion", id)
	}
	if err := s.gateway.Delete(ctx, "/discussions/"+id, nil); err != nil {
		return s.fail("DeleteDiscussion", err, DiscussionErrorMessage)
	}

	ref := DiscussionRef(id)
	cache.PatchRefs(s.cache, ref, func(_ cache.Key, list []model.Discussion) []model.Discussion {
		return without(list, id)
	})
	cache.PatchRefs(s.cache, ref, func(_ cache.Key, b model.Brief) model.Brief {
		b.Discussions = without(b.Discussions, id)
		return b
	})
	s.notifier.Success("Message deleted")
	return nil
}

func without(list []model.Discussion, id string) []model.Discussion {
	out := make([]model.Discussion, 0, len(list))
	for _, d := range list {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}

// replace swaps the message with id for d. When the thread no longer holds
// id, d goes at the end. d is never listed twice.
func replace(list []model.Discussion, id string, d model.Discussion) []model.Discussion {
	out := make([]model.Discussion, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		switch existing.ID {
		case d.ID:
			continue
		case id:
			out = append(out, d)
			replaced = true
		default:
			out = append(out, existing)
		}
	}
	if !replaced {
		out = append(out, d)
	}
	return out
}

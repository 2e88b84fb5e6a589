package portal

import (
	"github.com/jrsteele09/go-brief-portal/cache"
	"github.com/jrsteele09/go-brief-portal/model"
)

// Cache keys. Invalidating a prefix covers every key built on it.
var (
	BriefsPrefix        = cache.Key{"briefs"}
	BriefListsPrefix    = cache.Key{"briefs", "list"}
	StatisticsKey       = cache.Key{"briefs", "stats"}
	DiscussionsPrefix   = cache.Key{"discussions"}
	MyDiscussionsKey    = cache.Key{"discussions", "my"}
	SearchPrefix        = cache.Key{"discussions", "search"}
	NotificationsPrefix = cache.Key{"notifications"}
	NotificationListKey = cache.Key{"notifications", "list"}
	UnreadCountKey      = cache.Key{"notifications", "unread"}
)

// BriefListKey is the key of every brief, or of one client's briefs.
func BriefListKey(clientID string) cache.Key {
	if clientID == "" {
		return BriefListsPrefix
	}
	return cache.Key{"briefs", "list", clientID}
}

func BriefDetailKey(id string) cache.Key {
	return cache.Key{"briefs", "detail", id}
}

func DeliverablesKey(briefID string) cache.Key {
	return cache.Key{"briefs", "detail", briefID, "deliverables"}
}

func BriefDiscussionsKey(briefID string) cache.Key {
	return cache.Key{"discussions", "brief", briefID}
}

func SearchKey(query string) cache.Key {
	return cache.Key{"discussions", "search", query}
}

func UserKey(id string) cache.Key {
	return cache.Key{"users", "detail", id}
}

const (
	briefRef      = "brief"
	discussionRef = "discussion"
)

func BriefRef(id string) cache.Ref {
	return cache.Ref{Kind: briefRef, ID: id}
}

func DiscussionRef(id string) cache.Ref {
	return cache.Ref{Kind: discussionRef, ID: id}
}

// registerIndexers teaches c which records each kind of value holds, so a
// write to one record can find every cached copy of it.
func registerIndexers(c *cache.Cache) {
	c.Index(BriefsPrefix, func(value any) []cache.Ref {
		switch v := value.(type) {
		case model.Brief:
			refs := []cache.Ref{BriefRef(v.ID)}
			for _, d := range v.Discussions {
				refs = append(refs, DiscussionRef(d.ID))
			}
			return refs
		case []model.Brief:
			refs := make([]cache.Ref, 0, len(v))
			for _, b := range v {
				refs = append(refs, BriefRef(b.ID))
			}
			return refs
		}
		return nil
	})
	c.Index(DiscussionsPrefix, func(value any) []cache.Ref {
		v, ok := value.([]model.Discussion)
		if !ok {
			return nil
		}
		refs := make([]cache.Ref, 0, len(v))
		for _, d := range v {
			refs = append(refs, DiscussionRef(d.ID))
		}
		return refs
	})
}

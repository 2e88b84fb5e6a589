package portal

import (
	"context"
	"time"

	"github.com/jrsteele09/go-brief-portal/cache"
	apperrors "github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/pkg/errors"
)

const (
	briefStaleTime      = 5 * time.Minute
	statisticsStaleTime = 30 * time.Second
)

func (s *Service) fetchBriefs(ctx context.Context) ([]model.Brief, error) {
	var list model.BriefList
	if err := s.gateway.Get(ctx, "/briefs", &list); err != nil {
		return nil, err
	}
	if list.Briefs == nil {
		return []model.Brief{}, nil
	}
	return list.Briefs, nil
}

// ListBriefs returns every brief the user can see, newest first.
func (s *Service) ListBriefs(ctx context.Context) ([]model.Brief, error) {
	briefs, err := cache.Fetch(ctx, s.cache, cache.Query[[]model.Brief]{
		Key:       BriefListKey(""),
		Fetch:     s.fetchBriefs,
		StaleTime: briefStaleTime,
		Retry:     s.retry(3),
	})
	return briefs, errors.Wrap(err, "[Service.ListBriefs]")
}

// BriefsByClient returns one client's briefs. The backend has no filter, so
// the full list is filtered here.
func (s *Service) BriefsByClient(ctx context.Context, clientID string) ([]model.Brief, error) {
	if !validID(clientID) {
		return nil, invalidID("BriefsByClient", clientID)
	}
	briefs, err := cache.Fetch(ctx, s.cache, cache.Query[[]model.Brief]{
		Key: BriefListKey(clientID),
		Fetch: func(ctx context.Context) ([]model.Brief, error) {
			all, err := s.fetchBriefs(ctx)
			if err != nil {
				return nil, err
			}
			out := []model.Brief{}
			for _, b := range all {
				if b.ClientID == clientID {
					out = append(out, b)
				}
			}
			return out, nil
		},
		StaleTime: briefStaleTime,
		Retry:     s.retry(3),
	})
	return briefs, errors.Wrap(err, "[Service.BriefsByClient]")
}

// GetBrief returns one brief with its deliverables and discussions. An id
// that cannot name a brief is rejected without a backend call.
func (s *Service) GetBrief(ctx context.Context, id string) (model.Brief, error) {
	if !validID(id) {
		return model.Brief{}, invalidID("GetBrief", id)
	}
	brief, err := cache.Fetch(ctx, s.cache, cache.Query[model.Brief]{
		Key: BriefDetailKey(id),
		Fetch: func(ctx context.Context) (model.Brief, error) {
			var brief model.Brief
			err := s.gateway.Get(ctx, "/briefs/"+id, &brief)
			return brief, err
		},
		StaleTime: briefStaleTime,
		Retry:     s.retry(3),
	})
	return brief, errors.Wrap(err, "[Service.GetBrief]")
}

// BriefStatistics returns brief counts per status.
func (s *Service) BriefStatistics(ctx context.Context) (model.BriefStatistics, error) {
	stats, err := cache.Fetch(ctx, s.cache, cache.Query[model.BriefStatistics]{
		Key: StatisticsKey,
		Fetch: func(ctx context.Context) (model.BriefStatistics, error) {
			var stats model.BriefStatistics
			err := s.gateway.Get(ctx, "/briefs/statistics", &stats)
			return stats, err
		},
		StaleTime: statisticsStaleTime,
		Retry:     s.retry(2),
	})
	return stats, errors.Wrap(err, "[Service.BriefStatistics]")
}

// CreateBrief submits a new brief. The created brief is put at the head of
// the cached list; lists and statistics are refetched on their next read.
func (s *Service) CreateBrief(ctx context.Context, req model.CreateBriefRequest) (model.Brief, error) {
	var brief model.Brief
	if err := s.gateway.Post(ctx, "/briefs", req, &brief); err != nil {
		return model.Brief{}, s.fail("CreateBrief", err, BriefErrorMessage)
	}

	cache.Update(s.cache, BriefListKey(""), func(briefs []model.Brief) []model.Brief {
		return append([]model.Brief{brief}, briefs...)
	})
	s.cache.Invalidate(BriefListsPrefix)
	s.cache.Invalidate(StatisticsKey)
	s.notifier.Success("Brief created successfully")
	return brief, nil
}

// UpdateBriefStatus moves a brief to status. Any status may follow any other.
// The detail and every cached list holding the brief are patched at once;
// lists and statistics are refetched on their next read.
func (s *Service) UpdateBriefStatus(ctx context.Context, id string, status model.BriefStatus) (model.Brief, error) {
	if !validID(id) {
		return model.Brief{}, invalidID("UpdateBriefStatus", id)
	}
	canonical, ok := model.ParseBriefStatus(string(status))
	if !ok {
		return model.Brief{}, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Service.UpdateBriefStatus] unknown status %q", status)
	}

	var brief model.Brief
	if err := s.gateway.Put(ctx, "/briefs/"+id, model.UpdateBriefStatusRequest{Status: canonical}, &brief); err != nil {
		return model.Brief{}, s.fail("UpdateBriefStatus", err, BriefErrorMessage)
	}

	cache.Set(s.cache, BriefDetailKey(brief.ID), brief)
	cache.PatchRefs(s.cache, BriefRef(brief.ID), func(_ cache.Key, briefs []model.Brief) []model.Brief {
		out := make([]model.Brief, len(briefs))
		for i, b := range briefs {
			if b.ID == brief.ID {
				b = brief
			}
			out[i] = b
		}
		return out
	})
	s.cache.Invalidate(BriefListsPrefix)
	s.cache.Invalidate(StatisticsKey)
	s.notifier.Success("Brief status updated successfully")
	return brief, nil
}

// BriefDeliverables returns the deliverables of a brief, newest first.
func (s *Service) BriefDeliverables(ctx context.Context, briefID string) ([]model.Deliverable, error) {
	if !validID(briefID) {
		return nil, invalidID("BriefDeliverables", briefID)
	}
	deliverables, err := cache.Fetch(ctx, s.cache, cache.Query[[]model.Deliverable]{
		Key: DeliverablesKey(briefID),
		Fetch: func(ctx context.Context) ([]model.Deliverable, error) {
			var list model.DeliverableList
			if err := s.gateway.Get(ctx, "/briefs/"+briefID+"/deliverables", &list); err != nil {
				return nil, err
			}
			if list.Deliverables == nil {
				return []model.Deliverable{}, nil
			}
			return list.Deliverables, nil
		},
		StaleTime: briefStaleTime,
		Retry:     s.retry(3),
	})
	return deliverables, errors.Wrap(err, "[Service.BriefDeliverables]")
}

// AddDeliverable attaches a deliverable to a brief. The cached deliverable
// list and brief detail both gain it.
func (s *Service) AddDeliverable(ctx context.Context, briefID string, req model.CreateDeliverableRequest) (model.Deliverable, error) {
	if !validID(briefID) {
		return model.Deliverable{}, invalidID("AddDeliverable", briefID)
	}

	var deliverable model.Deliverable
	if err := s.gateway.Post(ctx, "/briefs/"+briefID+"/deliverables", req, &deliverable); err != nil {
		return model.Deliverable{}, s.fail("AddDeliverable", err, BriefErrorMessage)
	}

	cache.Update(s.cache, DeliverablesKey(briefID), func(list []model.Deliverable) []model.Deliverable {
		return append([]model.Deliverable{deliverable}, list...)
	})
	cache.Update(s.cache, BriefDetailKey(briefID), func(b model.Brief) model.Brief {
		b.Deliverables = append([]model.Deliverable{deliverable}, b.Deliverables...)
		b.UpdatedAt = s.nowFunc()
		return b
	})
	s.notifier.Success("Deliverable added successfully")
	return deliverable, nil
}

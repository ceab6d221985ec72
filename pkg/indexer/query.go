package indexer

import (
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
)

// Filter narrows the queried events. Zero values match everything.
type Filter struct {
	ProjectKey *funding.ProjectKey
	Kind       funding.NotificationKind
	Account    ledger.AccountID
	// only events recorded after this ID are returned
	AfterID uint64
	Limit   int
}

// Events returns the matching events in the order they were recorded.
func (i *Indexer) Events(filter *Filter) ([]*Entry, error) {
	query := i.db.Model(&event{})

	if filter != nil {
		if filter.ProjectKey != nil {
			query = query.Where("project_key = ?", uint32(*filter.ProjectKey))
		}
		if filter.Kind != "" {
			query = query.Where("kind = ?", string(filter.Kind))
		}
		if filter.Account != "" {
			query = query.Where("account = ?", string(filter.Account))
		}
		if filter.AfterID > 0 {
			query = query.Where("id > ?", filter.AfterID)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
	}

	var events []*event
	if err := query.Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(events))
	for _, e := range events {
		entries = append(entries, e.entry())
	}
	return entries, nil
}

// EventCount returns the number of recorded events.
func (i *Indexer) EventCount() (int64, error) {
	var count int64
	if err := i.db.Model(&event{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

package indexer

import (
	"strconv"
	"strings"
	"time"

	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
)

type status struct {
	ID       uint `gorm:"primaryKey;not null"`
	LastTick tick.Index
}

// milestoneKeys is stored as a comma separated list.
type milestoneKeys string

func milestoneKeysFrom(keys []funding.MilestoneKey) milestoneKeys {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, strconv.FormatUint(uint64(key), 10))
	}
	return milestoneKeys(strings.Join(parts, ","))
}

func (m milestoneKeys) keys() []funding.MilestoneKey {
	if m == "" {
		return nil
	}
	parts := strings.Split(string(m), ",")
	keys := make([]funding.MilestoneKey, 0, len(parts))
	for _, part := range parts {
		key, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			continue
		}
		keys = append(keys, funding.MilestoneKey(key))
	}
	return keys
}

type event struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Kind          string `gorm:"index;not null"`
	ProjectKey    uint32 `gorm:"index;not null"`
	MilestoneKeys milestoneKeys
	Account       string `gorm:"index"`
	Amount        uint64
	CurrencyID    uint32
	Approve       bool
	Result        string
	Tick          uint32 `gorm:"index;not null"`
	CreatedAt     time.Time
}

func eventFromNotification(notification *funding.Notification) *event {
	return &event{
		Kind:          string(notification.Kind),
		ProjectKey:    uint32(notification.ProjectKey),
		MilestoneKeys: milestoneKeysFrom(notification.MilestoneKeys),
		Account:       string(notification.Account),
		Amount:        notification.Amount,
		CurrencyID:    uint32(notification.CurrencyID),
		Approve:       notification.Approve,
		Result:        notification.Result,
		Tick:          uint32(notification.Tick),
	}
}

// Entry is a recorded funding event.
type Entry struct {
	ID         uint64    `json:"id"`
	RecordedAt time.Time `json:"recordedAt"`
	*funding.Notification
}

func (e *event) entry() *Entry {
	return &Entry{
		ID:         e.ID,
		RecordedAt: e.CreatedAt,
		Notification: &funding.Notification{
			Kind:          funding.NotificationKind(e.Kind),
			ProjectKey:    funding.ProjectKey(e.ProjectKey),
			MilestoneKeys: e.MilestoneKeys.keys(),
			Account:       ledger.AccountID(e.Account),
			Amount:        e.Amount,
			CurrencyID:    ledger.CurrencyID(e.CurrencyID),
			Approve:       e.Approve,
			Result:        e.Result,
			Tick:          tick.Index(e.Tick),
		},
	}
}

package domain

import "time"

// NotificationRecord holds the last slot-set fingerprint sent to a user for
// a subscription. One active record per subscription; owned exclusively by
// the notification deduper.
type NotificationRecord struct {
	SubscriptionID string    `json:"subscription_id"`
	Fingerprint    string    `json:"fingerprint"`
	SlotCount      int       `json:"slot_count"`
	SentAt         time.Time `json:"sent_at"`
}

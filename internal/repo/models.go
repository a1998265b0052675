package repo

import "time"

// Review statuses. Submissions start pending; only approved reviews are
// served on product pages.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// Review represents a row in the reviews table.
type Review struct {
	ID            string
	ProductHandle string
	Author        string
	Rating        int
	Title         string
	Body          string
	Status        string
	CreatedAt     time.Time
}

// WebhookEventRecord persists one received platform webhook for auditing.
type WebhookEventRecord struct {
	ID         string
	Topic      string
	ShopDomain string
	Payload    []byte
	ReceivedAt time.Time
}

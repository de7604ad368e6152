// Package types holds the domain model, error taxonomy, and context plumbing
// shared by every layer of the PhotoForge backend.
package types

import "time"

// User is the identity record. Identity lifecycle (signup, email
// verification) is owned by the auth subsystem; the rest of the platform
// references users by ID only.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubscriptionPlan is one row of the plan catalog. Immutable after seeding
// except for Active toggling. Names are unique.
type SubscriptionPlan struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	StripePriceID      *string      `json:"stripe_price_id"`
	MonthlyUploadLimit int          `json:"monthly_upload_limit"`
	Features           PlanFeatures `json:"features"`
	Active             bool         `json:"active"`
	CreatedAt          time.Time    `json:"created_at"`
}

// PlanFeatures describes what a plan unlocks. Stored as JSONB.
type PlanFeatures struct {
	MaxProjects     int  `json:"max_projects"`
	AllowBatchEdit  bool `json:"allow_batch_edit"`
	AllowRawUploads bool `json:"allow_raw_uploads"`
	PriorityQueue   bool `json:"priority_queue"`
}

// UserSubscription is the durable local mirror of a Stripe subscription.
// The primary key is Stripe's own subscription ID, which is what makes the
// reconciler's upsert idempotent under webhook replays.
//
// Rows are written only by the webhook reconciler, never by direct user
// action.
type UserSubscription struct {
	ID               string             `json:"id"` // Stripe subscription ID
	UserID           string             `json:"user_id"`
	PriceID          string             `json:"price_id"`
	StripeCustomerID string             `json:"stripe_customer_id"`
	Status           SubscriptionStatus `json:"status"`
	CurrentPeriodEnd time.Time          `json:"current_period_end"`
	LastEventAt      time.Time          `json:"-"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// UsageTracking counts uploads consumed by a user within one calendar-month
// billing period. Invariants: UploadCount >= 0, and a user's period windows
// never overlap.
type UsageTracking struct {
	UserID      string    `json:"user_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	UploadCount int       `json:"upload_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Project groups a user's images. Owned exclusively by its creating user;
// deleting a project cascades to its images at the storage layer.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Image belongs to exactly one project. StorageKey locates the object in the
// asset bucket; Type distinguishes originals from processed outputs.
type Image struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"-"`
	Type       ImageType `json:"type"`
	StorageKey string    `json:"-"`
	URL        string    `json:"url,omitempty"` // constructed delivery URL, never persisted
	CreatedAt  time.Time `json:"created_at"`
}

// Preset is a stylistic editing preset shown in the gallery. The prompt
// fields drive internal generation and are deliberately excluded from API
// responses.
type Preset struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ThumbnailKey   string    `json:"thumbnail_key"`
	SortOrder      int       `json:"sort_order"`
	Active         bool      `json:"-"`
	PromptTemplate string    `json:"-"`
	NegativePrompt string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session is a server-side authenticated session. The raw token is returned
// to the client once; only its hash is stored.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	TokenHash  string    `json:"-"`
	IPAddress  string    `json:"-"`
	UserAgent  string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEvent records a business-significant billing occurrence. These rows
// are append-only and periodically archived to cold storage.
type AuditEvent struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ExportJob is the message sent to the export queue when a user requests a
// download in a specific format. The worker feeds it to the Transcoder.
type ExportJob struct {
	JobID      string    `json:"job_id"`
	ProjectID  string    `json:"project_id"`
	UserID     string    `json:"user_id"`
	StorageKey string    `json:"storage_key"`
	Format     string    `json:"format"`
	Quality    int       `json:"quality"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

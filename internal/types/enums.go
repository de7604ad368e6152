package types

// SubscriptionStatus mirrors Stripe's subscription status values.
type SubscriptionStatus string

const (
	SubStatusActive            SubscriptionStatus = "active"
	SubStatusPastDue           SubscriptionStatus = "past_due"
	SubStatusCanceled          SubscriptionStatus = "canceled"
	SubStatusIncomplete        SubscriptionStatus = "incomplete"
	SubStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubStatusTrialing          SubscriptionStatus = "trialing"
	SubStatusUnpaid            SubscriptionStatus = "unpaid"
)

// ParseSubscriptionStatus maps a raw Stripe status string onto the domain
// enum, passing unrecognized values through so new provider states are not
// silently collapsed.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch s {
	case "active":
		return SubStatusActive
	case "past_due":
		return SubStatusPastDue
	case "canceled":
		return SubStatusCanceled
	case "incomplete":
		return SubStatusIncomplete
	case "incomplete_expired":
		return SubStatusIncompleteExpired
	case "trialing":
		return SubStatusTrialing
	case "unpaid":
		return SubStatusUnpaid
	default:
		return SubscriptionStatus(s)
	}
}

// ImageType distinguishes image rows within a project.
type ImageType string

const (
	ImageTypeOriginal  ImageType = "original"
	ImageTypeProcessed ImageType = "processed"
)

// ExportFormat enumerates the formats the export endpoint accepts.
type ExportFormat string

const (
	ExportFormatJPEG ExportFormat = "jpeg"
	ExportFormatPNG  ExportFormat = "png"
	ExportFormatWebP ExportFormat = "webp"
)

// ValidExportFormat reports whether f is a supported export format.
func ValidExportFormat(f string) bool {
	switch ExportFormat(f) {
	case ExportFormatJPEG, ExportFormatPNG, ExportFormatWebP:
		return true
	}
	return false
}

package models

// LogStatus is the lifecycle state of a DailyLog. The set is fixed; the
// application is not a general workflow engine.
type LogStatus string

const (
	LogStatusOrdered         LogStatus = "ordered"
	LogStatusPickedPartial   LogStatus = "picked_partial"
	LogStatusPickedFull      LogStatus = "picked_full"
	LogStatusDispatched      LogStatus = "dispatched"
	LogStatusReceivedPartial LogStatus = "received_partial"
	LogStatusReceivedFull    LogStatus = "received_full"
	LogStatusDiscrepancy     LogStatus = "discrepancy"
)

func (s LogStatus) IsValid() bool {
	switch s {
	case LogStatusOrdered, LogStatusPickedPartial, LogStatusPickedFull,
		LogStatusDispatched, LogStatusReceivedPartial, LogStatusReceivedFull,
		LogStatusDiscrepancy:
		return true
	}
	return false
}

// IsActiveForPickup reports whether a log in this status can still appear in
// the pickup worklist. The quantity condition (ordered > dispatched) is
// checked separately on the log itself.
func (s LogStatus) IsActiveForPickup() bool {
	switch s {
	case LogStatusOrdered, LogStatusPickedPartial, LogStatusPickedFull:
		return true
	}
	return false
}

// IsActive reports whether a log in this status still represents an open
// real-world order. Used by duplicate detection; includes dispatched.
func (s LogStatus) IsActive() bool {
	return s.IsActiveForPickup() || s == LogStatusDispatched
}

func (s LogStatus) IsReceived() bool {
	return s == LogStatusReceivedPartial || s == LogStatusReceivedFull
}

// activePickupStatuses is the WHERE-clause form of IsActiveForPickup.
var activePickupStatuses = []LogStatus{
	LogStatusOrdered, LogStatusPickedPartial, LogStatusPickedFull,
}

var activeStatuses = []LogStatus{
	LogStatusOrdered, LogStatusPickedPartial, LogStatusPickedFull, LogStatusDispatched,
}

// LogAction identifies one entry in a log's append-only history ledger.
type LogAction string

const (
	LogActionCreated         LogAction = "created"
	LogActionUpdatedOrder    LogAction = "updated_order"
	LogActionEditedDetails   LogAction = "edited_details"
	LogActionVisitedZero     LogAction = "visited_zero"
	LogActionSplitRemaining  LogAction = "split_remaining"
	LogActionDispatched      LogAction = "dispatched"
	LogActionReceived        LogAction = "received"
	LogActionMergedEntries   LogAction = "merged_entries"
	LogActionFlagDiscrepancy LogAction = "flagged_discrepancy"
	LogActionDeleted         LogAction = "deleted"
)

// PurchaseOrderStatus tracks the thin supplier-batch snapshot.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft  PurchaseOrderStatus = "draft"
	PurchaseOrderStatusSent   PurchaseOrderStatus = "sent"
	PurchaseOrderStatusClosed PurchaseOrderStatus = "closed"
)

func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusDraft, PurchaseOrderStatusSent, PurchaseOrderStatusClosed:
		return true
	}
	return false
}

// BillingProofKind classifies an attached billing proof image.
type BillingProofKind string

const (
	BillingProofInvoice BillingProofKind = "invoice"
	BillingProofReceipt BillingProofKind = "receipt"
	BillingProofOther   BillingProofKind = "other"
)

func (k BillingProofKind) IsValid() bool {
	switch k {
	case BillingProofInvoice, BillingProofReceipt, BillingProofOther:
		return true
	}
	return false
}

// StorefrontPlatform identifies the e-commerce platform of a configured store.
type StorefrontPlatform string

const (
	StorefrontPlatformShopify StorefrontPlatform = "shopify"
)

// UserRole is the fixed role set of the seeded credential list.
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleStaff UserRole = "staff"
)

// SyncAction mirrors the mutation kind on outbox records.
type SyncAction string

const (
	SyncActionCreate SyncAction = "CREATE"
	SyncActionUpdate SyncAction = "UPDATE"
	SyncActionDelete SyncAction = "DELETE"
)

// OutboxPublishStatus is the dispatch state of a sync outbox row.
type OutboxPublishStatus string

const (
	OutboxPublishStatusPending   OutboxPublishStatus = "PENDING"
	OutboxPublishStatusPublished OutboxPublishStatus = "PUBLISHED"
	OutboxPublishStatusFailed    OutboxPublishStatus = "FAILED"
)

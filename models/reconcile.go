package models

// ReconcileSummary is the result of the offline commission reconciliation
// batch pass, printed by the batch job and returned to admin callers.
type ReconcileSummary struct {
	OK                      bool `json:"ok"`
	TotalCompletedBookings  int  `json:"total_completed_bookings"`
	ProcessedGroups         int  `json:"processed_groups"`
	UpdatedBookings         int  `json:"updated_bookings"`
	CommissionRemovedCount  int  `json:"commission_removed_count"`
	CommissionRestoredCount int  `json:"commission_restored_count"`
}

package taskname

const (
	// Payout tasks
	PayoutReconcileStale = "payout:reconcile:stale"
	PayoutReconcileOne   = "payout:reconcile:one"

	// Campaign tasks
	CampaignExpireRun = "campaign:expire:run"
)

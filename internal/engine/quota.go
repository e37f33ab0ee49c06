package engine

// DefaultMaxTransactions is the default limit on transactions applied by
// one Run. Zero means unlimited.
const DefaultMaxTransactions = 0

// runQuota counts the transactions applied in one run and enforces the
// System's limit, bounding long message chains between contracts.
type runQuota struct {
	limit   int
	applied int
}

func newRunQuota(limit int) *runQuota {
	return &runQuota{limit: limit}
}

// Check increments the counter and fails once the limit is reached while
// messages are still pending.
func (q *runQuota) Check(runID string, pending int) error {
	q.applied++
	if q.limit > 0 && q.applied >= q.limit && pending > 0 {
		return NewQuotaError(runID, q.applied, q.limit)
	}
	return nil
}

// Applied returns the number of transactions counted so far.
func (q *runQuota) Applied() int {
	return q.applied
}

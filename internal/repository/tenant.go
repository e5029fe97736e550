package repository

import "gorm.io/gorm"

// scoped applies the mandatory organization filter. Every query in this
// package goes through it; a row outside the caller's organization is
// indistinguishable from a row that does not exist.
func scoped(q *gorm.DB, orgID string) *gorm.DB {
	return q.Where("organization_id = ?", orgID)
}

// scopedWorkOrder narrows a query to one work order within the
// organization
func scopedWorkOrder(q *gorm.DB, orgID string, workOrderID interface{}) *gorm.DB {
	return scoped(q, orgID).Where("work_order_id = ?", workOrderID)
}

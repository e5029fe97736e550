package mapper

import (
	"github.com/norvik-as/fieldops-api/internal/domain"
)

// ToWorkOrderDTO converts WorkOrder to WorkOrderDTO
func ToWorkOrderDTO(wo *domain.WorkOrder) domain.WorkOrderDTO {
	timeLog := make([]domain.TimeLogDTO, len(wo.TimeLog))
	for i, entry := range wo.TimeLog {
		timeLog[i] = ToTimeLogDTO(&entry)
	}

	parts := make([]domain.PartDTO, len(wo.PartsUsed))
	for i, part := range wo.PartsUsed {
		parts[i] = ToPartDTO(&part)
	}

	return domain.WorkOrderDTO{
		ID:                   wo.ID,
		OrganizationID:       wo.OrganizationID,
		Title:                wo.Title,
		Description:          wo.Description,
		CustomerName:         wo.CustomerName,
		SiteAddress:          wo.SiteAddress,
		JobType:              wo.JobType,
		Status:               wo.Status,
		Priority:             wo.Priority,
		AssignedTo:           wo.AssignedTo,
		AssignedToName:       wo.AssignedToName,
		CompletedAt:          wo.CompletedAt,
		TechnicianReport:     wo.TechnicianReport,
		TechnicianSignedBy:   wo.TechnicianSignedBy,
		TechnicianSignedName: wo.TechnicianSignedName,
		TechnicianSignedAt:   wo.TechnicianSignedAt,
		BillingStatus:        wo.BillingStatus,
		BillingReadyAt:       wo.BillingReadyAt,
		BillingSentAt:        wo.BillingSentAt,
		BillingSentBy:        wo.BillingSentBy,
		InvoicedAt:           wo.InvoicedAt,
		InvoicedBy:           wo.InvoicedBy,
		TimeLog:              timeLog,
		PartsUsed:            parts,
		CreatedAt:            wo.CreatedAt,
		UpdatedAt:            wo.UpdatedAt,
	}
}

// ToWorkOrderDTOs converts a slice of work orders
func ToWorkOrderDTOs(orders []domain.WorkOrder) []domain.WorkOrderDTO {
	dtos := make([]domain.WorkOrderDTO, len(orders))
	for i := range orders {
		dtos[i] = ToWorkOrderDTO(&orders[i])
	}
	return dtos
}

// ToTimeLogDTO converts WorkOrderTimeLog to TimeLogDTO
func ToTimeLogDTO(entry *domain.WorkOrderTimeLog) domain.TimeLogDTO {
	return domain.TimeLogDTO{
		ID:           entry.ID,
		Description:  entry.Description,
		Minutes:      entry.Minutes,
		LoggedBy:     entry.LoggedBy,
		LoggedByName: entry.LoggedByName,
		CreatedAt:    entry.CreatedAt,
	}
}

// ToPartDTO converts WorkOrderPart to PartDTO
func ToPartDTO(part *domain.WorkOrderPart) domain.PartDTO {
	return domain.PartDTO{
		ID:        part.ID,
		PartName:  part.PartName,
		Qty:       part.Qty,
		UnitCost:  part.UnitCost,
		TotalCost: part.TotalCost,
		CreatedAt: part.CreatedAt,
	}
}

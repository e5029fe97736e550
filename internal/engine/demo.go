package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/norvik-as/fieldops-api/internal/domain"
)

// demoWorkOrders is the fixed dataset the engine serves when no
// organization id is configured. Deliberate degraded mode for demos and
// local development, not an error.
func demoWorkOrders(now time.Time) []domain.WorkOrder {
	furnace := domain.WorkOrder{
		Title:          "Annual furnace service",
		Description:    "Full service of the rooftop furnace unit, filters and burners.",
		CustomerName:   "Bakken Eiendom AS",
		SiteAddress:    "Industrigata 14, Oslo",
		JobType:        domain.JobTypeField,
		Status:         domain.StatusAssigned,
		Priority:       domain.PriorityNormal,
		AssignedTo:     "demo-tech",
		AssignedToName: "Demo Technician",
		BillingStatus:  domain.BillingNone,
	}
	furnace.ID = uuid.New()
	furnace.CreatedAt = now.Add(-48 * time.Hour)
	furnace.UpdatedAt = now.Add(-24 * time.Hour)

	tl := domain.WorkOrderTimeLog{
		WorkOrderID: furnace.ID,
		Description: "Initial inspection",
		Minutes:     45,
		LoggedBy:    "demo-tech",
	}
	tl.ID = uuid.New()
	tl.CreatedAt = now.Add(-24 * time.Hour)
	furnace.TimeLog = []domain.WorkOrderTimeLog{tl}

	part := domain.WorkOrderPart{
		WorkOrderID: furnace.ID,
		PartName:    "Air filter 290x490",
		Qty:         2,
		UnitCost:    decimal.NewFromFloat(149.50),
		TotalCost:   decimal.NewFromFloat(299.00),
	}
	part.ID = uuid.New()
	part.CreatedAt = now.Add(-24 * time.Hour)
	furnace.PartsUsed = []domain.WorkOrderPart{part}

	compressor := domain.WorkOrder{
		Title:         "Compressor overhaul",
		Description:   "Customer drop-off, intermittent pressure loss.",
		CustomerName:  "Vestli Verksted",
		JobType:       domain.JobTypeWorkshop,
		Status:        domain.StatusWorkshopTroubleshooting,
		Priority:      domain.PriorityHigh,
		BillingStatus: domain.BillingNone,
	}
	compressor.ID = uuid.New()
	compressor.CreatedAt = now.Add(-72 * time.Hour)
	compressor.UpdatedAt = now.Add(-6 * time.Hour)

	webRequest := domain.WorkOrder{
		Title:         "Leaking radiator valve",
		Description:   "Submitted through the customer portal.",
		CustomerName:  "Solheim Borettslag",
		SiteAddress:   "Solheimveien 2, Lørenskog",
		JobType:       domain.JobTypeField,
		Status:        domain.StatusWebPending,
		Priority:      domain.PriorityLow,
		BillingStatus: domain.BillingNone,
	}
	webRequest.ID = uuid.New()
	webRequest.CreatedAt = now.Add(-2 * time.Hour)
	webRequest.UpdatedAt = now.Add(-2 * time.Hour)

	return []domain.WorkOrder{furnace, compressor, webRequest}
}

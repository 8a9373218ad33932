package couriers

import (
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
)

// LinkDTO is the retailer-facing view of one courier link.
type LinkDTO struct {
	ID           uuid.UUID               `json:"id"`
	CourierID    uuid.UUID               `json:"courier_id"`
	CourierName  string                  `json:"courier_name"`
	CourierPhone *string                 `json:"courier_phone,omitempty"`
	Status       enums.CourierLinkStatus `json:"status"`
	LinkedAt     time.Time               `json:"linked_at"`
}

type linkRow struct {
	models.RetailerDeliveryBoy
	CourierName  string  `gorm:"column:courier_name"`
	CourierPhone *string `gorm:"column:courier_phone"`
}

func linkRowsToDTO(rows []linkRow) []LinkDTO {
	out := make([]LinkDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, LinkDTO{
			ID:           row.ID,
			CourierID:    row.DeliveryBoyID,
			CourierName:  row.CourierName,
			CourierPhone: row.CourierPhone,
			Status:       row.Status,
			LinkedAt:     row.CreatedAt,
		})
	}
	return out
}

func linkToDTO(link *models.RetailerDeliveryBoy, courier *models.User) *LinkDTO {
	return &LinkDTO{
		ID:           link.ID,
		CourierID:    link.DeliveryBoyID,
		CourierName:  courier.Name,
		CourierPhone: courier.Phone,
		Status:       link.Status,
		LinkedAt:     link.CreatedAt,
	}
}

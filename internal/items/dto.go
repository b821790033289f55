package items

import (
	"time"

	"github.com/angelmondragon/dontforget-backend/pkg/geo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FenceDTO carries a geofence over the API.
type FenceDTO struct {
	Name         string  `json:"name" validate:"required"`
	Address      *string `json:"address,omitempty"`
	Latitude     float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude    float64 `json:"longitude" validate:"min=-180,max=180"`
	RadiusMeters float64 `json:"radius_meters" validate:"gt=0"`
}

// CreateItemDTO holds creation-time data for a new trackable item. The code
// and image fields are opaque capture payload.
type CreateItemDTO struct {
	Title            string           `json:"title" validate:"required"`
	Notes            *string          `json:"notes,omitempty"`
	Location         *FenceDTO        `json:"location,omitempty"`
	TriggerOnArrival *bool            `json:"trigger_on_arrival,omitempty"`
	ExpirationDate   *time.Time       `json:"expiration_date,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
	StoreName        *string          `json:"store_name,omitempty"`
	ValueLabel       *string          `json:"value_label,omitempty"`
	Code             *string          `json:"code,omitempty"`
	CodeFormat       *string          `json:"code_format,omitempty"`
	ImageData        []byte           `json:"image_data,omitempty"`
}

// UpdateItemDTO replaces the mutable fields of an existing item.
type UpdateItemDTO struct {
	Title            string           `json:"title" validate:"required"`
	Notes            *string          `json:"notes,omitempty"`
	IsCompleted      bool             `json:"is_completed"`
	Location         *FenceDTO        `json:"location,omitempty"`
	TriggerOnArrival *bool            `json:"trigger_on_arrival,omitempty"`
	ExpirationDate   *time.Time       `json:"expiration_date,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
	StoreName        *string          `json:"store_name,omitempty"`
	ValueLabel       *string          `json:"value_label,omitempty"`
	Code             *string          `json:"code,omitempty"`
	CodeFormat       *string          `json:"code_format,omitempty"`
	ImageData        []byte           `json:"image_data,omitempty"`
}

// UpdateBalanceDTO sets the remaining balance on a voucher item. The balance
// is a pointer so an explicit zero passes validation.
type UpdateBalanceDTO struct {
	Balance *decimal.Decimal `json:"balance" validate:"required"`
}

// ItemDTO exposes one item plus its derived state in API responses.
type ItemDTO struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	Notes            *string          `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	IsCompleted      bool             `json:"is_completed"`
	Location         *FenceDTO        `json:"location,omitempty"`
	TriggerOnArrival bool             `json:"trigger_on_arrival"`
	ExpirationDate   *time.Time       `json:"expiration_date,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
	StoreName        *string          `json:"store_name,omitempty"`
	ValueLabel       *string          `json:"value_label,omitempty"`
	Code             *string          `json:"code,omitempty"`
	CodeFormat       *string          `json:"code_format,omitempty"`
	ImageData        []byte           `json:"image_data,omitempty"`

	IsExpired       bool `json:"is_expired"`
	IsActive        bool `json:"is_active"`
	IsExpiringSoon  bool `json:"is_expiring_soon"`
	DaysUntilExpiry *int `json:"days_until_expiry,omitempty"`
}

// ItemsPageDTO is a cursor-paginated item listing.
type ItemsPageDTO struct {
	Items      []ItemDTO `json:"items"`
	NextCursor *string   `json:"next_cursor,omitempty"`
}

// SummaryDTO aggregates the collection for the dashboard view.
type SummaryDTO struct {
	Total        int             `json:"total"`
	Active       int             `json:"active"`
	Completed    int             `json:"completed"`
	ExpiringSoon int             `json:"expiring_soon"`
	WithLocation int             `json:"with_location"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

// FromItem maps an item and its derived state into a DTO.
func FromItem(item Item, now time.Time) ItemDTO {
	dto := ItemDTO{
		ID:               item.ID,
		Title:            item.Title,
		Notes:            item.Notes,
		CreatedAt:        item.CreatedAt,
		IsCompleted:      item.IsCompleted,
		TriggerOnArrival: item.TriggerOnArrival,
		ExpirationDate:   item.ExpirationDate,
		Balance:          item.Balance,
		StoreName:        item.StoreName,
		ValueLabel:       item.ValueLabel,
		Code:             item.Code,
		CodeFormat:       item.CodeFormat,
		ImageData:        item.ImageData,
		IsExpired:        item.IsExpired(now),
		IsActive:         item.IsActive(now),
		IsExpiringSoon:   item.IsExpiringSoon(now),
	}
	if item.Location != nil {
		dto.Location = &FenceDTO{
			Name:         item.Location.Name,
			Address:      item.Location.Address,
			Latitude:     item.Location.Latitude,
			Longitude:    item.Location.Longitude,
			RadiusMeters: item.Location.RadiusMeters,
		}
	}
	if days, ok := item.DaysUntilExpiry(now); ok {
		dto.DaysUntilExpiry = &days
	}
	return dto
}

// ToItem maps creation payload onto a new item.
func (d CreateItemDTO) ToItem() Item {
	item := Item{
		Title:          d.Title,
		Notes:          d.Notes,
		ExpirationDate: d.ExpirationDate,
		Balance:        d.Balance,
		StoreName:      d.StoreName,
		ValueLabel:     d.ValueLabel,
		Code:           d.Code,
		CodeFormat:     d.CodeFormat,
		ImageData:      d.ImageData,
	}
	item.Location = fenceFromDTO(d.Location)
	if d.TriggerOnArrival != nil {
		item.TriggerOnArrival = *d.TriggerOnArrival
	} else if item.Location != nil {
		item.TriggerOnArrival = true
	}
	return item
}

// ApplyTo maps update payload onto the existing item, preserving identity.
func (d UpdateItemDTO) ApplyTo(existing Item) Item {
	item := existing
	item.Title = d.Title
	item.Notes = d.Notes
	item.IsCompleted = d.IsCompleted
	item.Location = fenceFromDTO(d.Location)
	item.ExpirationDate = d.ExpirationDate
	item.Balance = d.Balance
	item.StoreName = d.StoreName
	item.ValueLabel = d.ValueLabel
	item.Code = d.Code
	item.CodeFormat = d.CodeFormat
	item.ImageData = d.ImageData
	if d.TriggerOnArrival != nil {
		item.TriggerOnArrival = *d.TriggerOnArrival
	}
	return item
}

func fenceFromDTO(dto *FenceDTO) *geo.Fence {
	if dto == nil {
		return nil
	}
	return &geo.Fence{
		Name:         dto.Name,
		Address:      dto.Address,
		Latitude:     dto.Latitude,
		Longitude:    dto.Longitude,
		RadiusMeters: dto.RadiusMeters,
	}
}

package models

const (
	BusActive   = "active"
	BusInactive = "inactive"
)

type Bus struct {
	Base
	BusNumber          string `json:"busNumber" gorm:"uniqueIndex;not null"`
	RegistrationNumber string `json:"registrationNumber"`
	Capacity           int    `json:"capacity"`
	OwnerID            uint   `json:"ownerId" gorm:"index;not null"`
	Owner              *User  `json:"owner,omitempty" gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	RouteID            *uint  `json:"routeId" gorm:"index"`
	Status             string `json:"status" gorm:"not null;default:active"`
}

func (b Bus) IsActive() bool {
	return b.Status == BusActive
}

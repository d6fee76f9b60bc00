package models

// Route represents a service path operated by a bus owner.
// A route has many stops, each stop carries its fare sections.
type Route struct {
	Base

	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	OwnerID     uint   `json:"ownerId" gorm:"index"`
	IsActive    bool   `json:"isActive" gorm:"not null;default:true"`

	// LineString stored as WKB; the API speaks GeoJSON.
	Geometry []byte `json:"-" gorm:"type:bytea"`

	Stops []Stop `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops,omitempty"`
	Buses []Bus  `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"buses,omitempty"`
}

package models

// Stop is a boarding or drop-off point along a route, ordered by Seq.
type Stop struct {
	Base

	Name     string  `json:"name" gorm:"not null"`
	Seq      int     `json:"seq"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	IsActive bool    `json:"isActive" gorm:"not null;default:true"`

	RouteID  uint      `json:"routeId" gorm:"index;not null"`
	Sections []Section `gorm:"foreignKey:StopID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"sections,omitempty"`
}

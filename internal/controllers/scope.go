package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"busops/internal/config"
	"busops/internal/middleware"
	"busops/internal/models"
)

// busScope is the set of buses the caller may see: everything for a super-admin, owned
// buses for a bus-owner, assigned buses for a manager.
type busScope struct {
	all bool
	ids map[uint]struct{}
}

func loadBusScope(c *gin.Context) (busScope, error) {
	uid := middleware.CurrentUserID(c)
	var ids []uint
	switch middleware.CurrentRole(c) {
	case models.RoleSuperAdmin:
		return busScope{all: true}, nil
	case models.RoleBusOwner:
		if err := config.DB.Model(&models.Bus{}).Where("owner_id = ?", uid).Pluck("id", &ids).Error; err != nil {
			return busScope{}, err
		}
	case models.RoleManager:
		if err := config.DB.Table("manager_buses").Where("user_id = ?", uid).Pluck("bus_id", &ids).Error; err != nil {
			return busScope{}, err
		}
	default:
		return busScope{}, ForbiddenError{Msg: "Access denied"}
	}
	s := busScope{ids: make(map[uint]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s, nil
}

func (s busScope) allows(busID uint) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[busID]
	return ok
}

func (s busScope) list() []uint {
	out := make([]uint, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// apply restricts q to rows whose column is a bus in scope.
func (s busScope) apply(q *gorm.DB, column string) *gorm.DB {
	if s.all {
		return q
	}
	if len(s.ids) == 0 {
		return q.Where("1 = 0")
	}
	return q.Where(column+" IN ?", s.list())
}

func isSuperAdmin(c *gin.Context) bool {
	return middleware.CurrentRole(c) == models.RoleSuperAdmin
}

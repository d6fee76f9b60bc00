package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"busops/internal/middleware"
)

type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// ConflictError covers duplicates, records still referenced elsewhere and forbidden
// status transitions.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string { return e.Msg }

func invalid(format string, args ...interface{}) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// respondError maps typed errors to status codes. The message is sent both as "error"
// and "message" so either dashboard convention finds it.
func respondError(c *gin.Context, err error) {
	var (
		nf  NotFoundError
		ve  ValidationError
		ce  ConflictError
		fe  ForbiddenError
		msg string
		st  int
	)
	switch {
	case errors.As(err, &nf):
		st, msg = http.StatusNotFound, nf.Error()
	case errors.As(err, &ve):
		st, msg = http.StatusBadRequest, ve.Error()
	case errors.As(err, &ce):
		st, msg = http.StatusConflict, ce.Error()
	case errors.As(err, &fe):
		st, msg = http.StatusForbidden, fe.Error()
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"request_id": middleware.GetRequestID(c),
		}).Error("request failed")
		st, msg = http.StatusInternalServerError, "Internal server error"
	}
	c.AbortWithStatusJSON(st, gin.H{
		"error":      msg,
		"message":    msg,
		"request_id": middleware.GetRequestID(c),
	})
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classifyDBError turns driver errors into typed errors. Record-not-found becomes a
// NotFoundError for resource, unique and foreign key violations become conflicts.
func classifyDBError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFoundError{Resource: resource}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ConflictError{Msg: resource + " already exists"}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ConflictError{Msg: resource + " is referenced by other records"}
	case errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation:
		return ConflictError{Msg: resource + " already exists"}
	case errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation:
		return ConflictError{Msg: resource + " is referenced by other records"}
	}
	return err
}

package service

import (
	"taskflow/internal/apperrors"
	"taskflow/internal/domain"
)

// MsgTaskForbidden is returned when an actor touches a task it does not own.
const MsgTaskForbidden = "Not authorized to access this task"

// Authorize allows the owner of a resource and superusers. It must run after
// the resource is known to exist.
func Authorize(ownerID int64, actor domain.Actor) error {
	if actor.ID == ownerID || actor.IsSuperuser {
		return nil
	}
	return apperrors.Forbidden(MsgTaskForbidden)
}

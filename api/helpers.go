package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/cofferhq/coffer"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, coffer.ErrPermissionDenied) {
		return forge.Forbidden(err.Error())
	}
	if errors.Is(err, coffer.ErrStoreExists) || errors.Is(err, coffer.ErrACLExists) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, coffer.ErrInvalidStoreName) || errors.Is(err, coffer.ErrInvalidPerm) {
		return forge.BadRequest(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, coffer.ErrStoreNotFound) ||
		errors.Is(err, coffer.ErrObjectNotFound)
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

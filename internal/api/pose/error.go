package pose

import (
	"HeadTurner/pkg/response"
	"net/http"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest          = response.NewError(http.StatusBadRequest, "bad request")
	ErrInvalidAngle        = response.NewCodedError(http.StatusBadRequest, "INVALID_ANGLE", "yaw must be within [-45, 45] and pitch within [-30, 30]")
)

package controllers

import (
	"net/http"

	"github.com/angelmondragon/bulkquote-backend/api/middleware"
	"github.com/angelmondragon/bulkquote-backend/api/responses"
	"github.com/angelmondragon/bulkquote-backend/api/validators"
	"github.com/angelmondragon/bulkquote-backend/internal/fulfillment"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bulkquote-backend/pkg/errors"
	"github.com/angelmondragon/bulkquote-backend/pkg/logger"
)

type advanceFulfillmentBody struct {
	Status string `json:"status" validate:"required"`
}

// AdvanceFulfillment moves a paid request one step along the
// processing, shipping, delivered timeline.
func AdvanceFulfillment(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body advanceFulfillmentBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseRequestStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fulfillment status"))
			return
		}
		role, err := enums.ParseMemberRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown actor role"))
			return
		}

		status, err := svc.Advance(r.Context(), fulfillment.AdvanceInput{
			RequestID: requestID,
			Next:      next,
			ActorID:   sellerID,
			ActorRole: role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

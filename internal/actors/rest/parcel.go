package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

type parcelHandler struct {
	responder
	decoder
	parcels parcelUsecase
	query   parcelQuery
}

type recipientRequest struct {
	UserID  string `json:"userId"`
	Name    string `json:"name" validate:"omitempty,min=2,max=50"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Address string `json:"address" validate:"omitempty,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
}

type createParcelRequest struct {
	Recipient     recipientRequest `json:"recipient"`
	DeliveryFee   *float64         `json:"deliveryFee" validate:"omitempty,gte=0"`
	PickupAddress string           `json:"pickupAddress" validate:"omitempty,max=200"`
	Weight        float64          `json:"weight" validate:"required,gt=0"`
	Notes         string           `json:"notes" validate:"omitempty,max=500"`
}

type noteRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

type assignRequest struct {
	DeliveryManID string `json:"deliveryManId" validate:"required,uuid"`
	Note          string `json:"note" validate:"omitempty,max=500"`
}

type updateDeliveryStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PICKED_UP IN_TRANSIT DELIVERED CANCELLED RETURNED"`
	Note   string `json:"note" validate:"omitempty,max=500"`
}

func (h *parcelHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createParcelRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	parcel, err := h.parcels.CreateParcel(r.Context(), principal(r), model.CreateParcelArgs{
		Recipient: model.RecipientInput{
			UserID:  req.Recipient.UserID,
			Name:    req.Recipient.Name,
			Phone:   req.Recipient.Phone,
			Address: req.Recipient.Address,
			Email:   req.Recipient.Email,
		},
		DeliveryFee:   req.DeliveryFee,
		PickupAddress: req.PickupAddress,
		Weight:        req.Weight,
		Notes:         req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, "Parcel created successfully", parcel)
}

type listFunc func(r *http.Request, args model.ListParcelsArgs) (*model.ListParcelsResponse, error)

func (h *parcelHandler) serveList(w http.ResponseWriter, r *http.Request, message string, list listFunc) {
	args, err := listParcelsArgs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := list(r, args)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.page(w, message, res.Parcels, res.Meta)
}

func (h *parcelHandler) listMine(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, "Your parcels retrieved successfully", func(r *http.Request, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
		return h.query.ListBySender(r.Context(), principal(r), args)
	})
}

func (h *parcelHandler) listIncoming(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, "Incoming parcels retrieved successfully", func(r *http.Request, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
		return h.query.ListByReceiver(r.Context(), principal(r), args)
	})
}

func (h *parcelHandler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, "Assigned parcels retrieved successfully", func(r *http.Request, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
		return h.query.ListByDeliveryMan(r.Context(), principal(r), args)
	})
}

func (h *parcelHandler) listAll(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, "All parcels retrieved successfully", func(r *http.Request, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
		return h.query.ListAll(r.Context(), principal(r), args)
	})
}

func (h *parcelHandler) track(w http.ResponseWriter, r *http.Request) {
	view, err := h.query.GetByTrackingNumber(r.Context(), principal(r), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Parcel retrieved successfully", view)
}

func (h *parcelHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.query.GetByID(r.Context(), principal(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Parcel retrieved successfully", view)
}

type transitionFunc func(r *http.Request, args model.TransitionArgs) (*model.Parcel, error)

// serveTransition handles the routes whose body only carries an optional note.
func (h *parcelHandler) serveTransition(w http.ResponseWriter, r *http.Request, message string, transition transitionFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req noteRequest
	if err := h.decode(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	parcel, err := transition(r, model.TransitionArgs{ParcelID: id, Note: req.Note})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, message, parcel)
}

func (h *parcelHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.serveTransition(w, r, "Parcel cancelled successfully", func(r *http.Request, args model.TransitionArgs) (*model.Parcel, error) {
		return h.parcels.CancelParcel(r.Context(), principal(r), args)
	})
}

func (h *parcelHandler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.serveTransition(w, r, "Parcel delivery confirmed successfully", func(r *http.Request, args model.TransitionArgs) (*model.Parcel, error) {
		return h.parcels.ConfirmDelivery(r.Context(), principal(r), args)
	})
}

func (h *parcelHandler) block(w http.ResponseWriter, r *http.Request) {
	h.serveTransition(w, r, "Parcel blocked successfully", func(r *http.Request, args model.TransitionArgs) (*model.Parcel, error) {
		return h.parcels.BlockParcel(r.Context(), principal(r), args)
	})
}

func (h *parcelHandler) unblock(w http.ResponseWriter, r *http.Request) {
	h.serveTransition(w, r, "Parcel unblocked successfully", func(r *http.Request, args model.TransitionArgs) (*model.Parcel, error) {
		return h.parcels.UnblockParcel(r.Context(), principal(r), args)
	})
}

func (h *parcelHandler) assign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req assignRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	deliveryManID, err := uuid.Parse(req.DeliveryManID)
	if err != nil {
		h.writeError(w, r, model.NewValidationError("Invalid delivery man id",
			model.ErrorSource{Path: "deliveryManId", Message: "must be a valid id"}))
		return
	}
	parcel, err := h.parcels.AssignDeliveryMan(r.Context(), principal(r), model.AssignDeliveryManArgs{
		ParcelID:      id,
		DeliveryManID: deliveryManID,
		Note:          req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Delivery man assigned successfully", parcel)
}

func (h *parcelHandler) updateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateDeliveryStatusRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	parcel, err := h.parcels.UpdateDeliveryStatus(r.Context(), principal(r), model.UpdateDeliveryStatusArgs{
		ParcelID: id,
		Status:   model.ParcelStatus(req.Status),
		Note:     req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Parcel status updated successfully", parcel)
}

func listParcelsArgs(r *http.Request) (model.ListParcelsArgs, error) {
	page, limit, err := pageParams(r)
	if err != nil {
		return model.ListParcelsArgs{}, err
	}
	args := model.ListParcelsArgs{Page: page, Limit: limit}
	q := r.URL.Query()
	for _, status := range splitParam(q["status"]) {
		s := model.ParcelStatus(status)
		if !s.Valid() {
			return model.ListParcelsArgs{}, model.NewValidationError("Invalid query",
				model.ErrorSource{Path: "status", Message: status + " is not a valid parcel status"})
		}
		args.Statuses = append(args.Statuses, s)
	}
	for name, dst := range map[string]*time.Time{"createdAfter": &args.CreatedAfter, "createdBefore": &args.CreatedBefore} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return model.ListParcelsArgs{}, model.NewValidationError("Invalid query",
				model.ErrorSource{Path: name, Message: "must be an RFC3339 timestamp"})
		}
		*dst = t
	}
	return args, nil
}

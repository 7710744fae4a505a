package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rbroggi/parcelhub/internal/core/model"
)

type userHandler struct {
	responder
	decoder
	users userUsecase
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Address  string `json:"address" validate:"omitempty,max=200"`
	Picture  string `json:"picture" validate:"omitempty,url"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN USER DELIVERY_MAN"`
}

type assignRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN USER DELIVERY_MAN"`
}

type updateStatusRequest struct {
	IsActive string `json:"isActive" validate:"required,oneof=ACTIVE BLOCKED INACTIVE"`
}

func (h *userHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.users.RegisterUser(r.Context(), model.RegisterUserArgs{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
		Picture:  req.Picture,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, "User created successfully", user)
}

func (h *userHandler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Your profile retrieved successfully", user)
}

func (h *userHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	args := model.ListUsersArgs{Page: page, Limit: limit}
	for _, role := range splitParam(q["role"]) {
		args.Roles = append(args.Roles, model.Role(role))
	}
	for _, state := range splitParam(q["isActive"]) {
		args.ActiveStates = append(args.ActiveStates, model.ActiveState(state))
	}
	if raw := q.Get("includeDeleted"); raw != "" {
		args.IncludeDeleted, err = strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, r, model.NewValidationError("Invalid query", model.ErrorSource{Path: "includeDeleted", Message: "must be a boolean"}))
			return
		}
	}

	res, err := h.users.ListUsers(r.Context(), args)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.page(w, "All users retrieved successfully", res.Users, res.Meta)
}

func (h *userHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "User retrieved successfully", user)
}

func (h *userHandler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req assignRoleRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.users.AssignRole(r.Context(), principal(r), id, model.Role(req.Role))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "User role updated successfully", user)
}

func (h *userHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.users.UpdateUserStatus(r.Context(), principal(r), id, model.ActiveState(req.IsActive))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "User status updated successfully", user)
}

func (h *userHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.users.DeleteUser(r.Context(), principal(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "User deleted successfully", nil)
}

// splitParam accepts both repeated and comma separated query values.
func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, strings.ToUpper(part))
			}
		}
	}
	return out
}

func pageParams(r *http.Request) (uint32, uint32, error) {
	parse := func(name string) (uint32, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return 0, model.NewValidationError("Invalid query", model.ErrorSource{Path: name, Message: "must be a positive integer"})
		}
		return uint32(n), nil
	}
	page, err := parse("page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := parse("limit")
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ride-admin/internal/backend"
	"ride-admin/internal/console"
	"ride-admin/internal/functions"
	"ride-admin/internal/listview"
	"ride-admin/internal/logger"
	"ride-admin/internal/models"
	"ride-admin/internal/prefs"
	"ride-admin/internal/request"
	"ride-admin/internal/response"
)

// parseListQuery builds a listview query from the request's query string.
// When no explicit direction is given, date-like sort fields default to
// descending.
func parseListQuery(r *http.Request, defaultSort string, defaultDesc func(string) bool) (listview.Query, error) {
	qs := r.URL.Query()

	q := listview.Query{
		Search:  qs.Get("search"),
		Sort:    qs.Get("sort"),
		Page:    1,
		PerPage: 25,
	}
	if q.Sort == "" {
		q.Sort = defaultSort
	}

	if raw := qs.Get("range"); raw != "" {
		rng, err := listview.ParseDateRange(raw)
		if err != nil {
			return listview.Query{}, err
		}
		q.Range = rng
	}

	if raw := qs.Get("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return listview.Query{}, errors.New("desc must be a boolean")
		}
		q.Desc = desc
	} else {
		q.Desc = defaultDesc(q.Sort)
	}

	if raw := qs.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return listview.Query{}, errors.New("page must be a positive integer")
		}
		q.Page = page
	}
	if raw := qs.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			return listview.Query{}, errors.New("per_page must be a positive integer")
		}
		q.PerPage = perPage
	}

	return q, nil
}

// writeBackendError maps a store/backend failure to the right status. A
// session-expired failure additionally pokes the refresh governor.
func (app *Config) writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, console.ErrNotFound):
		response.NotFound(w, err.Error())
	case backend.IsSessionExpired(err):
		// Detached from the request: the refresh must outlive this response.
		go app.Governor.AttemptRefresh(context.Background())
		response.Unauthorized(w, "Platform session expired; refresh in progress")
	case backend.IsUnavailable(err):
		response.ServiceUnavailable(w, "Backend unavailable, try again shortly")
	default:
		logger.ErrorCtx(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		response.InternalServerError(w, "Something went wrong")
	}
}

func actorID(r *http.Request) string {
	if claims := claimsFrom(r.Context()); claims != nil {
		return claims.UserID
	}
	return ""
}

// ----- bookings -----

func (app *Config) ListBookings(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "scheduled_at", app.Bookings.DefaultDesc)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var filter console.BookingFilter
	qs := r.URL.Query()
	if raw := qs.Get("status"); raw != "" {
		status, err := models.ParseTripStatus(raw)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		filter.Status = status
	}
	if raw := qs.Get("priority"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "priority must be an integer")
			return
		}
		p, err := models.ParsePriority(n)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		filter.Priority = &p
	}
	filter.DriverID = qs.Get("driver_id")

	page := app.Bookings.List(q, filter)
	response.Success(w, "", map[string]any{
		"bookings": page,
		"unsynced": app.Bookings.Unsynced(),
		"degraded": app.Bookings.Degraded(),
	})
}

func (app *Config) RefreshBookings(w http.ResponseWriter, r *http.Request) {
	if err := app.Bookings.Refresh(r.Context()); err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Bookings refreshed", map[string]any{
		"degraded": app.Bookings.Degraded(),
	})
}

func (app *Config) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trip, ok := app.Bookings.Get(id)
	if !ok {
		response.NotFound(w, "Booking not found")
		return
	}
	response.Success(w, "", map[string]any{
		"booking":  trip,
		"unsynced": app.Bookings.Unsynced()[id],
	})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (app *Config) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	status, err := models.ParseTripStatus(req.Status)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	outcome, err := app.Bookings.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Status updated", outcome)
}

type editNotesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func (app *Config) EditBookingNotes(w http.ResponseWriter, r *http.Request) {
	var req editNotesRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	outcome, err := app.Bookings.EditNotes(r.Context(), chi.URLParam(r, "id"), req.Notes, actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Notes updated", outcome)
}

type setPriorityRequest struct {
	Priority int `json:"priority" validate:"gte=0,lte=2"`
}

func (app *Config) SetBookingPriority(w http.ResponseWriter, r *http.Request) {
	var req setPriorityRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	p, err := models.ParsePriority(req.Priority)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	outcome, err := app.Bookings.SetPriority(r.Context(), chi.URLParam(r, "id"), p, actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Priority updated", outcome)
}

type feeInput struct {
	Name            string  `json:"name" validate:"required,max=100"`
	Amount          float64 `json:"amount" validate:"gte=0"`
	CustomerVisible bool    `json:"customer_visible"`
}

type editFeesRequest struct {
	Fees []feeInput `json:"fees" validate:"dive"`
}

func (app *Config) EditBookingFees(w http.ResponseWriter, r *http.Request) {
	var req editFeesRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	fees := make([]models.CustomFee, 0, len(req.Fees))
	for _, f := range req.Fees {
		fees = append(fees, models.CustomFee{
			Name:            f.Name,
			Amount:          f.Amount,
			CustomerVisible: f.CustomerVisible,
		})
	}

	outcome, err := app.Bookings.EditFees(r.Context(), chi.URLParam(r, "id"), fees, actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Fees updated", outcome)
}

func (app *Config) SendBookingReminder(w http.ResponseWriter, r *http.Request) {
	outcome, err := app.Bookings.SendReminder(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Reminder sent", outcome)
}

type assignDriverRequest struct {
	DriverID *string `json:"driver_id"`
}

func (app *Config) AssignBookingDriver(w http.ResponseWriter, r *http.Request) {
	var req assignDriverRequest
	if request.HandleError(w, request.ReadJSON(w, r, &req)) {
		return
	}

	outcome, err := app.Bookings.AssignDriver(r.Context(), chi.URLParam(r, "id"), req.DriverID, actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Driver assignment updated", outcome)
}

func (app *Config) DuplicateBooking(w http.ResponseWriter, r *http.Request) {
	dup, outcome, err := app.Bookings.Duplicate(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Created(w, "Booking duplicated", map[string]any{
		"booking": dup,
		"outcome": outcome,
	})
}

// ----- users -----

func (app *Config) ListUsers(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "created_at", app.Users.DefaultDesc)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var filter console.UserFilter
	qs := r.URL.Query()
	if raw := qs.Get("role"); raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		filter.Role = role
	}
	if raw := qs.Get("suspended"); raw != "" {
		suspended, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, "suspended must be a boolean")
			return
		}
		filter.Suspended = &suspended
	}

	page := app.Users.List(q, filter)
	response.Success(w, "", map[string]any{
		"users":    page,
		"unsynced": app.Users.Unsynced(),
		"degraded": app.Users.Degraded(),
	})
}

func (app *Config) RefreshUsers(w http.ResponseWriter, r *http.Request) {
	if err := app.Users.Refresh(r.Context()); err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Users refreshed", map[string]any{
		"degraded": app.Users.Degraded(),
	})
}

func (app *Config) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, ok := app.Users.Get(id)
	if !ok {
		response.NotFound(w, "User not found")
		return
	}
	response.Success(w, "", map[string]any{
		"user":     user,
		"unsynced": app.Users.Unsynced()[id],
	})
}

type updateUserRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Role      *string `json:"role"`
	Suspended *bool   `json:"suspended"`
}

func (app *Config) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	patch := console.UserPatch{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Suspended: req.Suspended,
	}
	if req.Role != nil {
		role, err := models.ParseRole(*req.Role)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		patch.Role = &role
	}

	outcome, err := app.Users.Update(r.Context(), chi.URLParam(r, "id"), patch, actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "User updated", outcome)
}

func (app *Config) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := app.Users.DeleteEverywhere(r.Context(), id, actorID(r)); err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	logger.InfoCtx(r.Context(), "User deleted everywhere", "user_id", id, "actor_id", actorID(r))
	response.Success(w, "User deleted everywhere", nil)
}

// ----- drivers -----

func (app *Config) ListDrivers(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "created_at", app.Drivers.DefaultDesc)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var filter console.DriverFilter
	qs := r.URL.Query()
	if raw := qs.Get("status"); raw != "" {
		status, err := models.ParseVerificationStatus(raw)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		filter.Status = status
	}
	if raw := qs.Get("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, "available must be a boolean")
			return
		}
		filter.Available = &available
	}
	if raw := qs.Get("kind"); raw != "" {
		switch models.ListingKind(raw) {
		case models.ListingProfile, models.ListingPartnerOnly:
			filter.Kind = models.ListingKind(raw)
		default:
			response.BadRequest(w, "unknown listing kind")
			return
		}
	}

	page := app.Drivers.List(q, filter)
	response.Success(w, "", map[string]any{
		"drivers":  page,
		"unsynced": app.Drivers.Unsynced(),
	})
}

func (app *Config) RefreshDrivers(w http.ResponseWriter, r *http.Request) {
	if err := app.Drivers.Refresh(r.Context(), app.Users.Partners()); err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Drivers refreshed", nil)
}

func (app *Config) ApproveDriver(w http.ResponseWriter, r *http.Request) {
	outcome, err := app.Drivers.Approve(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Driver approved", outcome)
}

type declineDriverRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (app *Config) DeclineDriver(w http.ResponseWriter, r *http.Request) {
	var req declineDriverRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	outcome, err := app.Drivers.Decline(r.Context(), chi.URLParam(r, "id"), req.Reason, actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Driver declined", outcome)
}

func (app *Config) ToggleDriverAvailability(w http.ResponseWriter, r *http.Request) {
	outcome, err := app.Drivers.ToggleAvailability(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Availability updated", outcome)
}

func (app *Config) DriverDocuments(w http.ResponseWriter, r *http.Request) {
	docs, mode, err := app.Drivers.Documents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "", map[string]any{
		"documents": docs,
		"mode":      mode,
	})
}

func (app *Config) DriverLogs(w http.ResponseWriter, r *http.Request) {
	logs, mode, err := app.Drivers.Logs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "", map[string]any{
		"logs": logs,
		"mode": mode,
	})
}

type createProfileRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

func (app *Config) CreateDriverProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	driver, err := app.Drivers.MaterializeProfile(r.Context(), req.UserID, actorID(r))
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Created(w, "Driver profile created", map[string]any{
		"driver": driver,
	})
}

// ----- dashboard stats -----

func (app *Config) LoginStats(w http.ResponseWriter, r *http.Request) {
	stats, mode := app.Functions.FetchLoginStats(r.Context())
	response.Success(w, "", map[string]any{
		"stats": stats,
		"mode":  mode,
	})
}

func (app *Config) TripStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.Functions.FetchTripStats(r.Context())
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "", stats)
}

func (app *Config) DriverStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.Functions.FetchDriverStats(r.Context())
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "", stats)
}

// ListPayments reads the payments table directly and elevates to the
// privileged fetch when denied.
func (app *Config) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, mode, err := backend.Read(r.Context(),
		app.Backend.ListPayments,
		app.Functions.FetchPayments,
		func() []models.Payment { return nil },
	)
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "", map[string]any{
		"payments": payments,
		"mode":     mode,
	})
}

// ----- system health and debug -----

// SystemHealth combines the platform-wide summary with the pricing
// engine's latest probe. The platform call is best-effort.
func (app *Config) SystemHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"pricing": app.Pricing.Last(),
	}

	platform, err := app.Functions.FetchSystemHealth(r.Context())
	if err != nil {
		logger.WarnCtx(r.Context(), "Platform health fetch failed", "error", err)
		out["platform_error"] = "unavailable"
	} else {
		out["platform"] = platform
	}

	response.Success(w, "", out)
}

type pricingSimRequest struct {
	PickupAddress  string  `json:"pickup_address" validate:"required,max=300"`
	DropoffAddress string  `json:"dropoff_address" validate:"required,max=300"`
	DistanceKM     float64 `json:"distance_km" validate:"required,gt=0"`
	Priority       int     `json:"priority" validate:"gte=0,lte=2"`
}

// SimulatePricing validates the scenario before any network work so a bad
// request never reaches the pricing function.
func (app *Config) SimulatePricing(w http.ResponseWriter, r *http.Request) {
	var req pricingSimRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	quote, err := app.Functions.SimulatePricing(r.Context(), functions.PricingRequest{
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		DistanceKM:     req.DistanceKM,
		Priority:       req.Priority,
	})
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "", quote)
}

// ----- preferences -----

func (app *Config) GetPref(w http.ResponseWriter, r *http.Request) {
	flag := chi.URLParam(r, "flag")
	if !prefs.KnownFlag(flag) {
		response.BadRequest(w, "Unknown preference flag")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	value, err := app.Prefs.Get(ctx, actorID(r), flag)
	if err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "", map[string]string{"value": value})
}

type setPrefRequest struct {
	Value string `json:"value" validate:"required,max=200"`
}

func (app *Config) SetPref(w http.ResponseWriter, r *http.Request) {
	flag := chi.URLParam(r, "flag")
	if !prefs.KnownFlag(flag) {
		response.BadRequest(w, "Unknown preference flag")
		return
	}

	var req setPrefRequest
	if request.HandleError(w, request.ReadAndValidate(w, r, &req)) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.Prefs.Set(ctx, actorID(r), flag, req.Value); err != nil {
		app.writeBackendError(w, r, err)
		return
	}
	response.Success(w, "Preference saved", nil)
}

// ----- session -----

func (app *Config) SessionStatus(w http.ResponseWriter, r *http.Request) {
	response.Success(w, "", map[string]any{
		"exhausted":     app.sessionExhausted.Load(),
		"token_expired": app.Tokens.Expired(),
	})
}

// RefreshSession asks the governor for a refresh. The governor decides
// whether one actually runs; a rejected attempt is not an error.
func (app *Config) RefreshSession(w http.ResponseWriter, r *http.Request) {
	accepted := app.Governor.AttemptRefresh(r.Context())
	if accepted {
		app.sessionExhausted.Store(false)
	}
	response.Success(w, "", map[string]any{
		"accepted": accepted,
	})
}

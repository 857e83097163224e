package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.ListExpenses(r.Context())
	if err != nil {
		s.storeError(w, r, "Failed to list expenses", err, applog.OpList, nil)
		return
	}
	NewResponse().JSON(items).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	in, err := ParseNewExpense(w, r)
	if err != nil {
		logger.WarnContext(ctx, "Rejected expense body",
			applog.NewFields().WithError(err).WithErrorType(applog.ErrorTypeValidation).WithOperation(applog.OpParse).ToSlice()...)
		if errors.Is(err, ErrBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, MsgBodyTooLarge).Write(w)
			return
		}
		BadRequestError(MsgInvalidJSON).Write(w)
		return
	}

	e, err := s.svc.CreateExpense(ctx, in)
	if errors.Is(err, core.ErrMissingFields) {
		logger.DebugContext(ctx, "Expense missing fields", applog.FieldOperation, applog.OpValidate)
		BadRequestError(MsgMissingFields).Write(w)
		return
	}
	if err != nil {
		s.storeError(w, r, "Failed to create expense", err, applog.OpCreate, nil)
		return
	}

	NewResponse().JSON(OKResponse{OK: true, ID: e.ID}).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := mux.Vars(r)["id"]

	id, err := ParseExpenseID(raw)
	if err != nil {
		applog.FromContext(ctx).DebugContext(ctx, "Unparseable expense id", "raw_id", raw)
		NotFoundError().Write(w)
		return
	}

	err = s.svc.DeleteExpense(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError().Write(w)
		return
	}
	if err != nil {
		s.storeError(w, r, "Failed to delete expense", err, applog.OpDelete, applog.NewFields().WithExpenseID(id))
		return
	}

	NewResponse().JSON(OKResponse{OK: true}).Write(w)
}

// storeError logs err with the request's logger and answers 500 Store error.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, msg string, err error, op string, fields applog.LogFields) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), msg, err, op, applog.ErrorTypeStorage, fields)
	InternalServerError().Write(w)
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fastprodman/tombola/internal/services/payments"
)

type purchaseRequest struct {
	Quantity     int    `json:"quantity" validate:"required,min=1,max=1000"`
	CustomerName string `json:"customerName" validate:"omitempty,max=120"`
	ReturnURL    string `json:"returnUrl" validate:"omitempty,url"`
}

type purchaseResponse struct {
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl"`
	Quantity      int    `json:"quantity"`
	Bonus         int    `json:"bonus"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type purchaseStatusResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Result        string `json:"result"`
	Message       string `json:"message"`
	Settled       bool   `json:"settled"`
	Tickets       int64  `json:"tickets"`
	Balance       *int64 `json:"balance,omitempty"`
}

// CreatePurchaseHandler handles POST /users/{userKey}/purchases
func (h *HandlerProvider) CreatePurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userKey, err := h.userKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userKey in path")
		return
	}

	var req purchaseRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.validate.Struct(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "quantity must be between 1 and 1000, returnUrl must be a URL")
		return
	}

	init, err := h.purchases.Initiate(r.Context(), payments.PurchaseRequest{
		UserKey:      userKey,
		Quantity:     req.Quantity,
		CustomerName: strings.TrimSpace(req.CustomerName),
		ReturnURL:    req.ReturnURL,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if h.watchPurchases {
		h.purchases.Watch(init.TransactionID)
	}

	writeJSON(w, http.StatusCreated, purchaseResponse{
		TransactionID: init.TransactionID,
		PaymentURL:    init.RedirectURL,
		Quantity:      init.Quantity,
		Bonus:         init.Bonus,
		Amount:        init.Amount.StringFixed(2),
		Currency:      init.Currency,
	})
}

// PurchaseStatusHandler handles GET /purchases/{transactionId}?refresh=false.
// Each call is one poll tick; a reloaded page resumes by calling it again.
// refresh=false answers from storage without asking the provider.
func (h *HandlerProvider) PurchaseStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chiParam(r, "transactionId"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transactionId in path")
		return
	}

	refresh := true
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		var err error

		refresh, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "refresh must be a boolean")
			return
		}
	}

	observe := h.purchases.Observe
	if !refresh {
		observe = h.purchases.Status
	}

	out, err := observe(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, purchaseStatusResponse{
		TransactionID: out.TransactionID,
		Status:        string(out.Status),
		Result:        string(out.Result),
		Message:       out.Message,
		Settled:       out.Settled,
		Tickets:       out.Tickets,
		Balance:       out.Balance,
	})
}

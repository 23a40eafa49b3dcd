package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fastprodman/tombola/internal/services/claims"
	"github.com/google/uuid"
)

type segmentResponse struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Kind        string  `json:"kind"`
	ImageRef    string  `json:"imageRef,omitempty"`
	Weight      float64 `json:"weight"`
	Probability float64 `json:"probability"`
	Losing      bool    `json:"losing"`
}

type claimResponse struct {
	ID             string    `json:"id"`
	UserKey        string    `json:"userKey"`
	SegmentIndex   int       `json:"segmentIndex"`
	Label          string    `json:"label"`
	Kind           string    `json:"kind"`
	ImageRef       string    `json:"imageRef,omitempty"`
	Fulfillment    string    `json:"fulfillment"`
	FulfillmentURL string    `json:"fulfillmentUrl"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toClaimResponse(c claims.Claim) claimResponse {
	return claimResponse{
		ID:             c.ID.String(),
		UserKey:        c.UserKey,
		SegmentIndex:   c.SegmentIndex,
		Label:          c.Label,
		Kind:           c.Kind,
		ImageRef:       c.ImageRef,
		Fulfillment:    c.Fulfillment,
		FulfillmentURL: claims.FulfillmentPath(c),
		CreatedAt:      c.CreatedAt,
	}
}

type spinResponse struct {
	SegmentIndex int            `json:"segmentIndex"`
	Label        string         `json:"label"`
	Kind         string         `json:"kind"`
	ImageRef     string         `json:"imageRef,omitempty"`
	Losing       bool           `json:"losing"`
	Balance      int64          `json:"balance"`
	Claim        *claimResponse `json:"claim,omitempty"`
}

// SpinHandler handles POST /users/{userKey}/spin
func (h *HandlerProvider) SpinHandler(w http.ResponseWriter, r *http.Request) {
	userKey, err := h.userKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userKey in path")
		return
	}

	res, err := h.game.Spin(r.Context(), userKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := spinResponse{
		SegmentIndex: res.SegmentIndex,
		Label:        res.Segment.Label,
		Kind:         string(res.Segment.Kind),
		ImageRef:     res.Segment.ImageRef,
		Losing:       res.Segment.Losing,
		Balance:      res.Balance,
	}

	if res.Claim != nil {
		c := toClaimResponse(*res.Claim)
		resp.Claim = &c
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetBalanceHandler handles GET /users/{userKey}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userKey, err := h.userKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userKey in path")
		return
	}

	bal, err := h.ledger.GetBalance(r.Context(), userKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userKey": userKey,
		"tickets": bal,
	})
}

// FirstVisitHandler handles POST /users/{userKey}/first-visit
func (h *HandlerProvider) FirstVisitHandler(w http.ResponseWriter, r *http.Request) {
	userKey, err := h.userKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userKey in path")
		return
	}

	first, err := h.ledger.MarkFirstVisit(r.Context(), userKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"firstVisit": first})
}

// CatalogHandler handles GET /catalog
func (h *HandlerProvider) CatalogHandler(w http.ResponseWriter, _ *http.Request) {
	cat := h.game.Catalog()
	probs := cat.Probabilities()

	segments := make([]segmentResponse, len(cat))
	for i, s := range cat {
		segments[i] = segmentResponse{
			Index:       i,
			Label:       s.Label,
			Kind:        string(s.Kind),
			ImageRef:    s.ImageRef,
			Weight:      s.Weight,
			Probability: probs[i],
			Losing:      s.Losing,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"segments":    segments,
		"ticketPrice": h.pricing.TicketPrice.String(),
		"currency":    h.pricing.Currency,
	})
}

// GetClaimHandler handles GET /claims/{claimId}
func (h *HandlerProvider) GetClaimHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chiParam(r, "claimId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claimId in path")
		return
	}

	c, err := h.claims.GetClaim(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimResponse(c))
}

// ListClaimsHandler handles GET /users/{userKey}/claims?limit=N
func (h *HandlerProvider) ListClaimsHandler(w http.ResponseWriter, r *http.Request) {
	userKey, err := h.userKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userKey in path")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
	}

	list, err := h.claims.ListClaims(r.Context(), userKey, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]claimResponse, len(list))
	for i, c := range list {
		out[i] = toClaimResponse(c)
	}

	writeJSON(w, http.StatusOK, map[string]any{"claims": out})
}

// Package httpapi exposes the registrar over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	app "github.com/namedock/registrar/internal/app"
	"github.com/namedock/registrar/internal/app/domain/registration"
	"github.com/namedock/registrar/internal/app/metrics"
	licensesvc "github.com/namedock/registrar/internal/app/services/license"
	oraclesvc "github.com/namedock/registrar/internal/app/services/oracle"
	pricingsvc "github.com/namedock/registrar/internal/app/services/pricing"
	registrarsvc "github.com/namedock/registrar/internal/app/services/registrar"
	"github.com/namedock/registrar/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the registrar REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/pricing", h.pricing)
	mux.HandleFunc("/quotes", h.quotes)
	mux.HandleFunc("/parents/", h.parentResources)
	mux.HandleFunc("/receipts/", h.receipt)
	mux.HandleFunc("/oracle/snapshots", h.snapshots)
	mux.HandleFunc("/healthz", h.health)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (h *handler) pricing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]any{
		"tiers":               h.app.Pricing.TierPrices(),
		"license_price_cents": h.app.Pricing.LicensePriceCents(),
	}
	if price, err := h.app.Oracle.LatestPrice(r.Context()); err == nil {
		resp["oracle_price_8dec"] = price.Value
		resp["oracle_updated_at"] = price.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) quotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("quantity must be an integer"))
		return
	}
	quote, err := h.app.Pricing.QuoteBulk(r.Context(), quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quantity":          quote.Quantity,
		"unit_price_cents":  quote.UnitPriceCents,
		"total_cents":       quote.TotalCents,
		"oracle_price_8dec": quote.OraclePrice8,
		"required_wei":      quote.RequiredWei.String(),
	})
}

func (h *handler) parentResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/parents"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parent := parts[0]

	switch parts[1] {
	case "licenses":
		h.parentLicenses(w, r, parent, parts[2:])
	case "registrations":
		h.parentRegistrations(w, r, parent, parts[2:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) parentLicenses(w http.ResponseWriter, r *http.Request, parent string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				Account    string `json:"account"`
				PaymentWei string `json:"payment_wei"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			payment, err := parseWei(payload.PaymentWei)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}

			lic, refund, err := h.app.Licenses.Purchase(r.Context(), payload.Account, parent, payment)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"license":    lic,
				"refund_wei": refund.String(),
			})

		case http.MethodGet:
			licenses, err := h.app.Licenses.List(r.Context(), parent)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, licenses)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(rest) != 1 || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	licensed, err := h.app.Licenses.HasLicense(r.Context(), rest[0], parent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":      strings.ToLower(rest[0]),
		"parent_label": strings.ToLower(parent),
		"licensed":     licensed,
	})
}

func (h *handler) parentRegistrations(w http.ResponseWriter, r *http.Request, parent string, rest []string) {
	if len(rest) != 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Caller     string   `json:"caller"`
			Labels     []string `json:"labels"`
			Recipient  string   `json:"recipient"`
			Resolver   string   `json:"resolver"`
			TTL        uint64   `json:"ttl"`
			PaymentWei string   `json:"payment_wei"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		payment, err := parseWei(payload.PaymentWei)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		batch := registration.Batch{
			ParentLabel: parent,
			Labels:      payload.Labels,
			Recipient:   payload.Recipient,
			Resolver:    payload.Resolver,
			TTL:         payload.TTL,
		}
		receipt, refund, err := h.app.Registrar.Register(r.Context(), payload.Caller, batch, payment)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"receipt":    receipt,
			"refund_wei": refund.String(),
		})

	case http.MethodGet:
		receipts, err := h.app.Registrar.ListReceipts(r.Context(), parent)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, receipts)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) receipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/receipts"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	receipt, err := h.app.Registrar.GetReceipt(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *handler) snapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	snaps, err := h.app.Snapshots.ListPriceSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := map[string]string{"status": "ok"}
	if _, err := h.app.Oracle.LatestPrice(r.Context()); err != nil {
		status["oracle"] = err.Error()
	} else {
		status["oracle"] = "ok"
	}
	if h.app.Chain != nil {
		if height, err := h.app.Chain.BlockNumber(r.Context()); err != nil {
			status["chain"] = err.Error()
		} else {
			status["chain_block"] = strconv.FormatUint(height, 10)
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricingsvc.ErrInvalidQuantity),
		errors.Is(err, pricingsvc.ErrInvalidTiers),
		errors.Is(err, registrarsvc.ErrInvalidLabel),
		errors.Is(err, registrarsvc.ErrDuplicateLabel),
		errors.Is(err, registrarsvc.ErrBatchTooLarge):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, registrarsvc.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, licensesvc.ErrInsufficientPayment):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, licensesvc.ErrAlreadyLicensed),
		errors.Is(err, registrarsvc.ErrPartialRegistration):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, oraclesvc.ErrOracleUnavailable),
		errors.Is(err, oraclesvc.ErrStalePrice):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func parseWei(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("payment_wei must be a non-negative decimal string")
	}
	return value, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

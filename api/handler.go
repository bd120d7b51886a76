// Package api exposes a licensing engine's read accessors over HTTP.
//
// Every route is side-effect free. Mutations need an authenticated caller
// address, which is the host application's concern, so they are not served.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/license"
)

// Handler serves the read API.
type Handler struct {
	engine *licensing.Engine
	logger *slog.Logger
	router chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for unexpected errors.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler builds the router for engine.
func NewHandler(engine *licensing.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/config", h.getConfig)
	r.Get("/stats", h.getStats)
	r.Route("/licenses/{licenseID}", func(r chi.Router) {
		r.Get("/", h.getLicense)
		r.Get("/metadata", h.getMetadata)
	})
	r.Get("/holders/{address}/licenses", h.getHolderLicenses)

	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

type configResponse struct {
	DeploymentID  string           `json:"deployment_id"`
	Address       string           `json:"address"`
	Owner         string           `json:"owner"`
	Name          string           `json:"name"`
	Symbol        string           `json:"symbol"`
	BaseURI       string           `json:"base_uri"`
	MintPrice     licensing.Amount `json:"mint_price"`
	Paused        bool             `json:"paused"`
	State         licensing.State  `json:"state"`
	PaymentLedger string           `json:"payment_ledger"`
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.Config()
	render.JSON(w, r, configResponse{
		DeploymentID:  cfg.DeploymentID.String(),
		Address:       h.engine.Address().Hex(),
		Owner:         cfg.Owner.Hex(),
		Name:          cfg.Name,
		Symbol:        cfg.Symbol,
		BaseURI:       cfg.BaseURI,
		MintPrice:     cfg.MintPrice,
		Paused:        cfg.Paused,
		State:         h.engine.State(),
		PaymentLedger: cfg.PaymentLedger.Hex(),
	})
}

type statsResponse struct {
	TotalIssued     uint64           `json:"total_issued"`
	State           licensing.State  `json:"state"`
	TreasuryBalance licensing.Amount `json:"treasury_balance"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	balance, err := h.engine.TreasuryBalance(r.Context(), h.engine.PaymentLedger())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, statsResponse{
		TotalIssued:     h.engine.TotalIssued(),
		State:           h.engine.State(),
		TreasuryBalance: balance,
	})
}

type licenseResponse struct {
	ID            uint64             `json:"id"`
	Owner         string             `json:"owner"`
	Attributes    license.Attributes `json:"attributes"`
	PricePaid     licensing.Amount   `json:"price_paid"`
	PaymentLedger string             `json:"payment_ledger"`
	TokenURI      string             `json:"token_uri"`
}

func (h *Handler) getLicense(w http.ResponseWriter, r *http.Request) {
	licenseID, ok := h.licenseID(w, r)
	if !ok {
		return
	}
	lic, err := h.engine.License(r.Context(), licenseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, licenseResponse{
		ID:            lic.ID,
		Owner:         lic.Owner.Hex(),
		Attributes:    lic.Attributes,
		PricePaid:     lic.PricePaid,
		PaymentLedger: lic.PaymentLedger.Hex(),
		TokenURI:      h.engine.BaseURI() + strconv.FormatUint(lic.ID, 10),
	})
}

func (h *Handler) getMetadata(w http.ResponseWriter, r *http.Request) {
	licenseID, ok := h.licenseID(w, r)
	if !ok {
		return
	}
	uri, err := h.engine.TokenURI(r.Context(), licenseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"token_uri": uri})
}

type holderResponse struct {
	Holder     string   `json:"holder"`
	Balance    int      `json:"balance"`
	LicenseIDs []uint64 `json:"license_ids"`
}

func (h *Handler) getHolderLicenses(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		h.fail(w, r, &licensing.Error{Kind: licensing.ErrInvalidInput, Op: "api", Reason: "malformed address " + strconv.Quote(raw)})
		return
	}
	holder := common.HexToAddress(raw)

	ids, err := h.engine.OwnedLicenseIDs(r.Context(), holder)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, holderResponse{
		Holder:     holder.Hex(),
		Balance:    len(ids),
		LicenseIDs: ids,
	})
}

func (h *Handler) licenseID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "licenseID")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		h.fail(w, r, &licensing.Error{Kind: licensing.ErrInvalidInput, Op: "api", Reason: "malformed license id " + strconv.Quote(raw)})
		return 0, false
	}
	return n, true
}

// fail maps engine errors to problem responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	p := Problem{Status: http.StatusInternalServerError, Title: "Internal Server Error"}

	switch {
	case errors.Is(err, licensing.ErrNotFound):
		p.Status, p.Title = http.StatusNotFound, "Not Found"
	case errors.Is(err, licensing.ErrInvalidInput):
		p.Status, p.Title = http.StatusBadRequest, "Bad Request"
	default:
		h.logger.Error("api: request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}

	var le *licensing.Error
	if errors.As(err, &le) {
		p.Detail = le.Reason
	}
	p.Trace = middleware.GetReqID(r.Context())
	p.Type = "about:blank"

	_ = render.Render(w, r, &p)
}

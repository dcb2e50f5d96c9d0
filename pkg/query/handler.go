// Package query serves retained telemetry history over HTTP. Every operation
// is a read-only store call followed by response shaping; nothing here
// mutates store state.
package query

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/issmimic/iss-telemetry/pkg/catalog"
	"github.com/issmimic/iss-telemetry/pkg/httpx"
	"github.com/issmimic/iss-telemetry/pkg/storage"
)

// Handler serves the read-only telemetry API.
type Handler struct {
	store storage.Store
}

// NewHandler creates a query handler backed by store.
func NewHandler(store storage.Store) *Handler {
	return &Handler{store: store}
}

// descriptorFields is the flattened descriptor shape shared by all responses.
type descriptorFields struct {
	Description string `json:"description"`
	OpsNom      string `json:"ops_nom"`
	EngNom      string `json:"eng_nom"`
	Units       string `json:"units"`
	MinValue    string `json:"min_value"`
	MaxValue    string `json:"max_value"`
	EnumValues  string `json:"enum_values"`
	FormatSpec  string `json:"format_spec"`
}

func flatten(d catalog.Descriptor) descriptorFields {
	return descriptorFields{
		Description: d.Description,
		OpsNom:      d.OpsNom,
		EngNom:      d.EngNom,
		Units:       d.Units,
		MinValue:    d.MinValue,
		MaxValue:    d.MaxValue,
		EnumValues:  d.EnumValues,
		FormatSpec:  d.FormatSpec,
	}
}

type seriesResponse struct {
	Key string `json:"key"`
	descriptorFields
	Values []storage.Value `json:"values"`
}

func toSeriesResponse(ks storage.KeySeries) seriesResponse {
	values := ks.Values
	if values == nil {
		values = []storage.Value{}
	}
	return seriesResponse{
		Key:              ks.Key,
		descriptorFields: flatten(ks.Descriptor),
		Values:           values,
	}
}

type latestResponse struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
	descriptorFields
}

type keyResponse struct {
	Key string `json:"key"`
	descriptorFields
}

// HandleGetAll serves GET /api/data: the full retained history of every key,
// keys ascending, values newest first.
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	series, err := h.store.GetAll(r.Context())
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]seriesResponse, 0, len(series))
	for _, ks := range series {
		out = append(out, toSeriesResponse(ks))
	}
	httpx.RespondJSON(w, http.StatusOK, out)
}

// HandleGetKey serves GET /api/data/{key}: one key's retained history.
func (h *Handler) HandleGetKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	ks, err := h.store.GetByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.RespondErrorString(w, http.StatusNotFound, "No data found for key: "+key)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, toSeriesResponse(ks))
}

// HandleGetLatest serves GET /api/latest: the most recent observation per key.
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.GetLatest(r.Context())
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	out := make(map[string]latestResponse, len(latest))
	for key, lv := range latest {
		out[key] = latestResponse{
			Value:            lv.Value,
			Timestamp:        lv.Timestamp,
			descriptorFields: flatten(lv.Descriptor),
		}
	}
	httpx.RespondJSON(w, http.StatusOK, out)
}

// HandleListKeys serves GET /api/keys: one row per distinct key.
func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListKeys(r.Context())
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]keyResponse, 0, len(keys))
	for _, ki := range keys {
		out = append(out, keyResponse{
			Key:              ki.Key,
			descriptorFields: flatten(ki.Descriptor),
		})
	}
	httpx.RespondJSON(w, http.StatusOK, out)
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/biofarmaka/internal/insights"
	"github.com/vinodismyname/biofarmaka/pkg/mcperr"
	"github.com/vinodismyname/biofarmaka/pkg/validation"
	"github.com/vinodismyname/biofarmaka/pkg/version"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code  mcperr.Code `json:"code"`
	Error string      `json:"error"`
}

// invalidParam is a malformed query or path parameter.
type invalidParam string

func (e invalidParam) Error() string { return string(e) }

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		version.Build
	}{Status: "ok", Build: version.Info()})
}

func (a *API) handleSelectors(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.ListSelectors(r.Context())
	respond(w, r, out, err)
}

func (a *API) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	var in insights.YearInput
	if !bind(w, r, &in, func() error { return pathInt(r, "year", &in.Year) }) {
		return
	}
	out, err := a.svc.YearlySummary(r.Context(), in)
	respond(w, r, out, err)
}

func (a *API) handleCropComparison(w http.ResponseWriter, r *http.Request) {
	var in insights.YearInput
	if !bind(w, r, &in, func() error { return pathInt(r, "year", &in.Year) }) {
		return
	}
	out, err := a.svc.CropComparison(r.Context(), in)
	respond(w, r, out, err)
}

func (a *API) handleRanking(w http.ResponseWriter, r *http.Request) {
	var in insights.RankCropsInput
	q := r.URL.Query()
	in.Region = q.Get("region")
	if !bind(w, r, &in, func() error {
		return firstErr(pathInt(r, "year", &in.Year), queryInt(q, "top_n", &in.TopN))
	}) {
		return
	}
	out, err := a.svc.RankCrops(r.Context(), in)
	respond(w, r, out, err)
}

func (a *API) handleConcentration(w http.ResponseWriter, r *http.Request) {
	var in insights.ConcentrationInput
	q := r.URL.Query()
	in.Region = q.Get("region")
	if !bind(w, r, &in, func() error {
		return firstErr(pathInt(r, "year", &in.Year), queryInt(q, "top_n", &in.TopN))
	}) {
		return
	}
	out, err := a.svc.Concentration(r.Context(), in)
	respond(w, r, out, err)
}

func (a *API) handleClusterDistribution(w http.ResponseWriter, r *http.Request) {
	var in insights.YearInput
	if !bind(w, r, &in, func() error { return pathInt(r, "year", &in.Year) }) {
		return
	}
	out, err := a.svc.ClusterDistribution(r.Context(), in)
	respond(w, r, out, err)
}

func (a *API) handleClusterHistory(w http.ResponseWriter, r *http.Request) {
	var in insights.RegionInput
	if !bind(w, r, &in, func() error {
		region, err := url.PathUnescape(chi.URLParam(r, "region"))
		if err != nil {
			return invalidParam("VALIDATION: region is not a valid path segment")
		}
		in.Region = region
		return nil
	}) {
		return
	}
	out, err := a.svc.ClusterHistory(r.Context(), in)
	respond(w, r, out, err)
}

func (a *API) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := insights.CropTrendInput{Crop: q.Get("crop")}
	for _, v := range q["region"] {
		in.Regions = append(in.Regions, splitList(v)...)
	}
	if !bind(w, r, &in, nil) {
		return
	}
	out, err := a.svc.CropTrend(r.Context(), in)
	respond(w, r, out, err)
}

func (a *API) handleComposition(w http.ResponseWriter, r *http.Request) {
	var in insights.CompositionShiftInput
	q := r.URL.Query()
	if !bind(w, r, &in, func() error {
		if err := firstErr(
			queryInt(q, "baseline", &in.BaselineYear),
			queryInt(q, "current", &in.CurrentYear),
			queryInt(q, "top_n", &in.TopN),
		); err != nil {
			return err
		}
		if v := q.Get("threshold_pp"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return invalidParam("VALIDATION: threshold_pp must be a number")
			}
			in.MixThresholdPP = f
		}
		return nil
	}) {
		return
	}
	out, err := a.svc.CompositionShift(r.Context(), in)
	respond(w, r, out, err)
}

func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := insights.PreviewTableInput{
		Table:  q.Get("table"),
		Region: q.Get("region"),
		Crop:   q.Get("crop"),
		Cursor: q.Get("cursor"),
	}
	if !bind(w, r, &in, func() error {
		return firstErr(queryInt(q, "year", &in.Year), queryInt(q, "page_size", &in.PageSize))
	}) {
		return
	}
	out, err := a.svc.PreviewTable(r.Context(), in)
	respond(w, r, out, err)
}

// bind runs parse, then validates in. It writes a 400 and returns false on
// failure.
func bind(w http.ResponseWriter, r *http.Request, in any, parse func() error) bool {
	if parse != nil {
		if err := parse(); err != nil {
			code, msg := mcperr.Split(err.Error())
			writeError(w, code, msg)
			return false
		}
	}
	if msg := validation.ValidateStruct(in); msg != "" {
		code, text := mcperr.Split(msg)
		writeError(w, code, text)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, r *http.Request, out any, err error) {
	if err != nil {
		code := insights.Classify(err)
		evt := zerolog.Ctx(r.Context()).Debug()
		if mcperr.HTTPStatus(code) >= http.StatusInternalServerError {
			evt = zerolog.Ctx(r.Context()).Error()
		}
		evt.Err(err).Str("code", string(code)).Msg("request failed")
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeError(w http.ResponseWriter, code mcperr.Code, msg string) {
	if strings.TrimSpace(msg) == "" {
		if e, ok := mcperr.Lookup(code); ok {
			msg = e.Message
		}
	}
	writeJSON(w, mcperr.HTTPStatus(code), errorBody{Code: code, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathInt(r *http.Request, name string, dst *int) error {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return invalidParam("VALIDATION: " + name + " must be an integer")
	}
	*dst = n
	return nil
}

func queryInt(q url.Values, name string, dst *int) error {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return invalidParam("VALIDATION: " + name + " must be an integer")
	}
	*dst = n
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

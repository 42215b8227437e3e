package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"wims_connector/utils"
	"wims_connector/wims"

	httputils "github.com/3bl3gamer/go-http-utils"
	"github.com/ansel1/merry"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const CtxKeyEnv = ctxKey("env")
const CtxKeyDB = ctxKey("db")
const CtxKeyClient = ctxKey("client")
const CtxKeyLang = ctxKey("lang")

func ctxDB(r *http.Request) *sql.DB {
	return r.Context().Value(CtxKeyDB).(*sql.DB)
}

func ctxClient(r *http.Request) *wims.Client {
	return r.Context().Value(CtxKeyClient).(*wims.Client)
}

// handleWimsError turns expected WIMS failures into a JSON error (and journals
// them). Protocol violations and everything else go up as internal errors.
func handleWimsError(r *http.Request, err error) (interface{}, error) {
	if wims.IsProtocolViolation(err) {
		return nil, merry.Wrap(err)
	}
	res, ok := wims.ResultOf(err)
	if !ok {
		return nil, merry.Wrap(err)
	}
	journalFailure(r, res)
	return httputils.JsonError{Code: 502, Error: "WIMS_" + res.Status.String(), Description: res.Message}, nil
}

func journalFailure(r *http.Request, res *wims.Result) {
	if err := saveCallFailure(ctxDB(r), res); err != nil {
		log.Error().Stack().Err(err).Msg("can not save call failure")
	}
	log.Warn().Str("job", res.Job).Str("status", res.Status.String()).
		Strs("diagnostic", res.Diagnostic).Msg("WIMS call failed")
}

func paramModule(r *http.Request, ps httprouter.Params) (*ModuleBinding, *httputils.JsonError) {
	moduleID, err := strconv.ParseInt(ps.ByName("module_id"), 10, 64)
	if err != nil {
		return nil, &httputils.JsonError{Code: 400, Error: "WRONG_MODULE_ID", Description: ps.ByName("module_id")}
	}
	binding, err := loadModuleBinding(ctxDB(r), moduleID)
	if merry.Is(err, ErrModuleNotFound) {
		return nil, &httputils.JsonError{Code: 404, Error: "MODULE_NOT_FOUND"}
	}
	if err != nil {
		log.Error().Stack().Err(err).Int64("module_id", moduleID).Msg("can not load module")
		return nil, &httputils.JsonError{Code: 500, Error: "INTERNAL_ERROR"}
	}
	return binding, nil
}

// requestOrigin is the best guess of the browser address: the first
// X-Forwarded-For entry, otherwise the peer address.
func requestOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func HandleAPICheck(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	err := ctxClient(r).CheckConnection()
	if err == nil {
		return "ok", nil
	}
	if res, ok := wims.ResultOf(err); ok && !wims.IsProtocolViolation(err) {
		journalFailure(r, res)
		// err names the failed sub-check
		return httputils.JsonError{Code: 502, Error: "WIMS_" + res.Status.String(), Description: err.Error()}, nil
	}
	return nil, merry.Wrap(err)
}

func HandleAPIModuleAdd(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	var params struct {
		ModuleID int64  `json:"moduleId"`
		ClassID  string `json:"classId"`
		Binding  string `json:"binding"`
		Lang     string `json:"lang"`
	}
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	if err := json.Unmarshal(buf, &params); err != nil {
		return httputils.JsonError{Code: 400, Error: "WRONG_JSON", Description: err.Error()}, nil
	}
	if params.ModuleID <= 0 || params.ClassID == "" || params.Binding == "" {
		return httputils.JsonError{Code: 400, Error: "MISSING_FIELDS"}, nil
	}
	if params.Lang == "" {
		params.Lang = r.Context().Value(CtxKeyLang).(string)
	}

	binding := &ModuleBinding{ModuleID: params.ModuleID, ClassID: params.ClassID, Binding: params.Binding, Lang: params.Lang}
	if err := ctxClient(r).CheckClass(binding.Class()); err != nil {
		return handleWimsError(r, err)
	}
	err = saveModuleBinding(ctxDB(r), binding)
	if merry.Is(err, ErrModuleAlreadyBound) {
		return httputils.JsonError{Code: 400, Error: "ALREADY_EXISTS"}, nil
	} else if err != nil {
		return nil, merry.Wrap(err)
	}
	return "ok", nil
}

type itemJSON struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	State string `json:"state"`
}

func handleItemList(r *http.Request, ps httprouter.Params, list func(*wims.Client, wims.Class) (wims.ItemList, error)) (interface{}, error) {
	binding, jsonErr := paramModule(r, ps)
	if jsonErr != nil {
		return jsonErr, nil
	}
	items, err := list(ctxClient(r), binding.Class())
	if err != nil {
		return handleWimsError(r, err)
	}
	res := make([]itemJSON, 0, items.Len())
	for el := items.Front(); el != nil; el = el.Next() {
		res = append(res, itemJSON{ID: el.Key, Title: el.Value.Title, State: el.Value.State})
	}
	return res, nil
}

func HandleAPIWorksheets(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	return handleItemList(r, ps, (*wims.Client).Worksheets)
}

func HandleAPIExams(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	return handleItemList(r, ps, (*wims.Client).Exams)
}

func handleItemProperties(r *http.Request, ps httprouter.Params, fetch func(*wims.Client, wims.Class, string) (wims.Properties, error)) (interface{}, error) {
	binding, jsonErr := paramModule(r, ps)
	if jsonErr != nil {
		return jsonErr, nil
	}
	props, err := fetch(ctxClient(r), binding.Class(), ps.ByName("item_id"))
	if err != nil {
		return handleWimsError(r, err)
	}
	res := make(map[string]string, props.Len())
	for el := props.Front(); el != nil; el = el.Next() {
		res[el.Key] = el.Value
	}
	return res, nil
}

func HandleAPIWorksheet(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	return handleItemProperties(r, ps, (*wims.Client).WorksheetProperties)
}

func HandleAPIExam(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	return handleItemProperties(r, ps, (*wims.Client).ExamProperties)
}

func HandleAPIWorksheetGrades(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	binding, jsonErr := paramModule(r, ps)
	if jsonErr != nil {
		return jsonErr, nil
	}
	records, err := ctxClient(r).WorksheetScores(binding.Class(), ps.ByName("item_id"))
	if err != nil {
		return handleWimsError(r, err)
	}
	return worksheetGrades(records), nil
}

func HandleAPIExamGrades(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	binding, jsonErr := paramModule(r, ps)
	if jsonErr != nil {
		return jsonErr, nil
	}
	records, err := ctxClient(r).ExamScores(binding.Class(), ps.ByName("item_id"))
	if err != nil {
		return handleWimsError(r, err)
	}
	return examGrades(records), nil
}

func HandleAPISessionURL(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	binding, jsonErr := paramModule(r, ps)
	if jsonErr != nil {
		return jsonErr, nil
	}
	query := r.URL.Query()
	login, err := utils.ReadString(query, "login")
	if err != nil || login == "" {
		return httputils.JsonError{Code: 400, Error: "MISSING_VALUE_LOGIN"}, nil
	}

	client := ctxClient(r)
	class := binding.Class()
	origin := requestOrigin(r)

	var sessionURL string
	switch page := query.Get("page"); page {
	case "", "home":
		sessionURL, err = client.HomeURL(class, login, origin, binding.Lang)
	case "scores":
		sessionURL, err = client.ScoresURL(class, login, origin, binding.Lang)
	case "worksheet", "exam":
		itemID, readErr := utils.ReadInt64(query, "item")
		if readErr != nil {
			return httputils.JsonError{Code: 400, Error: "WRONG_VALUE_ITEM", Description: readErr.Error()}, nil
		}
		if page == "worksheet" {
			sessionURL, err = client.WorksheetURL(class, login, origin, binding.Lang, strconv.FormatInt(itemID, 10))
		} else {
			sessionURL, err = client.ExamURL(class, login, origin, binding.Lang, strconv.FormatInt(itemID, 10))
		}
	default:
		return httputils.JsonError{Code: 400, Error: "WRONG_PAGE", Description: page}, nil
	}
	if err != nil {
		return handleWimsError(r, err)
	}
	return map[string]string{"url": sessionURL}, nil
}

func HandleAPICalls(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) (interface{}, error) {
	limit := 20
	if _, ok := r.URL.Query()["limit"]; ok {
		value, err := utils.ReadInt64(r.URL.Query(), "limit")
		if err != nil || value <= 0 || value > 500 {
			return httputils.JsonError{Code: 400, Error: "WRONG_VALUE_LIMIT"}, nil
		}
		limit = int(value)
	}
	failures, err := loadRecentCallFailures(ctxDB(r), limit)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	return failures, nil
}

func newRouter(db *sql.DB, client *wims.Client, env utils.Env, lang string) *httprouter.Router {
	wrapper := &httputils.Wrapper{
		ShowErrorDetails: env.IsDev(),
		ExtraChainItem: func(handle httputils.HandlerExt) httputils.HandlerExt {
			return func(wr http.ResponseWriter, r *http.Request, params httprouter.Params) error {
				log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
				r = r.WithContext(context.WithValue(r.Context(), CtxKeyEnv, env))
				r = r.WithContext(context.WithValue(r.Context(), CtxKeyDB, db))
				r = r.WithContext(context.WithValue(r.Context(), CtxKeyClient, client))
				r = r.WithContext(context.WithValue(r.Context(), CtxKeyLang, lang))
				return merry.Wrap(handle(wr, r, params))
			}
		},
		LogError: func(err error, r *http.Request) {
			log.Error().Stack().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("")
		},
	}

	router := httprouter.New()
	route := func(method, path string, chain ...interface{}) {
		router.Handle(method, path, wrapper.WrapChain(chain...))
	}

	// Routes
	route("GET", "/api/check", HandleAPICheck)
	route("POST", "/api/modules", HandleAPIModuleAdd)
	route("GET", "/api/modules/:module_id/worksheets", HandleAPIWorksheets)
	route("GET", "/api/modules/:module_id/worksheets/:item_id", HandleAPIWorksheet)
	route("GET", "/api/modules/:module_id/exams", HandleAPIExams)
	route("GET", "/api/modules/:module_id/exams/:item_id", HandleAPIExam)
	route("GET", "/api/modules/:module_id/grades/worksheets/:item_id", HandleAPIWorksheetGrades)
	route("GET", "/api/modules/:module_id/grades/exams/:item_id", HandleAPIExamGrades)
	route("GET", "/api/modules/:module_id/session_url", HandleAPISessionURL)
	route("GET", "/api/calls", HandleAPICalls)
	return router
}

func StartHTTPServer(db *sql.DB, client *wims.Client, env utils.Env, lang, address string) error {
	router := newRouter(db, client, env, lang)
	log.Info().Str("address", address).Msg("starting server")
	return merry.Wrap(http.ListenAndServe(address, router))
}

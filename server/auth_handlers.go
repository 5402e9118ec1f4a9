package server

import (
	"encoding/json"
	"net/http"

	"social_distance/dto"
	"social_distance/logic"
	"social_distance/shared"
)

type authHandlerGroup struct {
	cfg      *shared.Config
	logger   shared.ILogger
	metrics  logic.IMetrics
	accounts logic.IAccounts
	adapters logic.IContentAdapters
}

func NewAuthHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	metrics logic.IMetrics,
	accounts logic.IAccounts,
	adapters logic.IContentAdapters,
) IHandlerGroup {
	res := authHandlerGroup{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		accounts: accounts,
		adapters: adapters,
	}
	return &res
}

func (hg *authHandlerGroup) Prefix() string {
	return ""
}

func (hg *authHandlerGroup) GroupDefs() []handlerDef {
	return []handlerDef{
		{"POST", "/register", func(w http.ResponseWriter, r *http.Request) { hg.postRegister(w, r) }},
		{"POST", "/login", func(w http.ResponseWriter, r *http.Request) { hg.postLogin(w, r) }},
	}
}

func (hg *authHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return emptyMW
}

func (hg *authHandlerGroup) postRegister(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("register")
	defer obs.Finish()

	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	var req dto.RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErrorResponse(w, badRequestStr, http.StatusBadRequest)
		return
	}
	author, err := hg.accounts.Register(&req)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, hg.adapters.WireAuthor(author))
}

func (hg *authHandlerGroup) postLogin(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("login")
	defer obs.Finish()

	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	var req dto.LoginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErrorResponse(w, badRequestStr, http.StatusBadRequest)
		return
	}
	token, err := hg.accounts.Login(&req)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, dto.TokenResponse{Token: token})
}

package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	apiclient "github.com/Juauvitorsm/painel-empresas/pkg/api/client"
	"github.com/Juauvitorsm/painel-empresas/pkg/insights"
	"github.com/Juauvitorsm/painel-empresas/pkg/resource"
	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

const connectionMessage = "Erro de conexão. Verifique se a sua API está rodando."

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if sess, err := s.sessions.Load(r); err == nil && sess.LoggedIn {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.renderLogin(w, r, http.StatusOK, flashFromRequest(r), "")
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.renderLogin(w, r, http.StatusBadRequest, errorNotice("Formulário inválido."), "")
			return
		}
		email := r.PostFormValue("email")
		if _, err := s.authFor(w, r).Login(r.Context(), email, r.PostFormValue("password")); err != nil {
			s.renderLogin(w, r, http.StatusOK, loginFailure(err), email)
			return
		}
		redirectWithFlash(w, r, "/tabs/empresas", successNotice("Login realizado com sucesso!"))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, flash *resource.Notice, email string) {
	s.render(w, status, "login", map[string]any{
		"Title":      "Faça login para continuar",
		"Flash":      flash,
		"HideChrome": true,
		"Email":      email,
	})
}

func loginFailure(err error) *resource.Notice {
	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		return warningNotice("Por favor, informe e-mail e senha.")
	case apiclient.IsConnectionError(err):
		return errorNotice(connectionMessage)
	default:
		return errorNotice("Credenciais inválidas. Verifique seu e-mail e senha.")
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderLogin(w, r, http.StatusBadRequest, errorNotice("Formulário inválido."), "")
		return
	}
	err := s.authFor(w, r).Register(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		s.renderLogin(w, r, http.StatusOK, registerFailure(err), "")
		return
	}
	redirectWithFlash(w, r, "/login", successNotice("Usuário cadastrado com sucesso! Agora você pode fazer o login."))
}

func registerFailure(err error) *resource.Notice {
	if errors.Is(err, session.ErrMissingCredentials) {
		return warningNotice("Por favor, informe e-mail e senha.")
	}
	if apiclient.IsConnectionError(err) {
		return errorNotice(connectionMessage)
	}
	detail := "Erro desconhecido"
	if f, ok := apiclient.AsFailure(err); ok && strings.TrimSpace(f.Detail()) != "" {
		detail = f.Detail()
	}
	return errorNotice("Erro ao cadastrar: " + detail)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := s.authFor(w, r).Logout(r.Context()); err != nil {
		s.logger.Warn("logout failed", "error", err)
	}
	redirectWithFlash(w, r, "/login", successNotice("Você saiu da sua conta."))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/tabs/empresas", http.StatusSeeOther)
}

func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	res, err := resource.Lookup(r.PathValue("resource"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sess, _ := sessionFromContext(r.Context())
	data := s.page(r, res.Title, res.Name)
	listing, err := s.views.Listing(r.Context(), sess, res)
	if err != nil {
		notice := insights.ListingNotice(res, err)
		data["Notice"] = &notice
	} else if listing.Empty() {
		notice := listing.EmptyNotice()
		data["Notice"] = &notice
	} else {
		data["Listing"] = listing
	}
	s.render(w, http.StatusOK, "tab", data)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sess, _ := sessionFromContext(r.Context())
	data := s.page(r, "Insights de Negócio", "insights")
	dash, err := s.views.Dashboard(r.Context(), sess)
	if err != nil {
		notice := insights.DashboardNotice(err)
		data["Notice"] = &notice
	} else {
		data["Dashboard"] = dash
	}
	s.render(w, http.StatusOK, "insights", data)
}

func (s *Server) handleManage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	res, err := resource.Lookup(r.PathValue("resource"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data := s.page(r, "Gerenciar "+res.Title, "manage")
	data["Resource"] = res
	s.render(w, http.StatusOK, "manage", data)
}

func (s *Server) handleManageSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	res, err := resource.Lookup(r.PathValue("resource"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, "/manage/"+res.Name, errorNotice("Formulário inválido."))
		return
	}
	values := make(resource.Values, len(res.Fields))
	for _, f := range res.Fields {
		values[f.Name] = r.PostFormValue(f.Name)
	}
	sess, _ := sessionFromContext(r.Context())

	var notice resource.Notice
	switch r.PathValue("action") {
	case "add":
		_, err = s.records.Add(r.Context(), sess, res, values)
		notice = resource.NoticeFor(resource.OpAdd, res, 0, err)
	case "update":
		id, convErr := strconv.Atoi(strings.TrimSpace(r.PostFormValue("id")))
		if convErr != nil {
			id = 0
		}
		_, err = s.records.Update(r.Context(), sess, res, id, values)
		notice = resource.NoticeFor(resource.OpUpdate, res, id, err)
	default:
		http.NotFound(w, r)
		return
	}
	redirectWithFlash(w, r, "/manage/"+res.Name, &notice)
}

package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Juauvitorsm/painel-empresas/pkg/api/client"
	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

// Sender is the part of the API client the controller needs.
type Sender interface {
	Send(ctx context.Context, req client.Request, sess session.Session) (client.Response, error)
}

// Controller maps one add or update submission to exactly one API call.
type Controller struct {
	api    Sender
	logger *slog.Logger
}

// NewController constructs a Controller.
func NewController(api Sender, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{api: api, logger: logger}
}

// Add creates a record. Validation problems return a *ValidationError without
// touching the network.
func (c *Controller) Add(ctx context.Context, sess session.Session, res Resource, values Values) (client.Response, error) {
	payload, err := BuildAdd(res, values)
	if err != nil {
		c.logger.Debug("add rejected locally", "resource", res.Name, "error", err)
		return client.Response{}, err
	}
	resp, err := c.api.Send(ctx, client.Request{
		Method:        http.MethodPost,
		Path:          res.CollectionPath(),
		Body:          payload,
		Authenticated: true,
	}, sess)
	if err != nil {
		c.logger.Warn("add failed", "resource", res.Name, "error", err)
		return client.Response{}, err
	}
	c.logger.Info("record added", "resource", res.Name)
	return resp, nil
}

// Update sends only the supplied fields of record id.
func (c *Controller) Update(ctx context.Context, sess session.Session, res Resource, id int, values Values) (client.Response, error) {
	payload, err := BuildUpdate(res, id, values)
	if err != nil {
		c.logger.Debug("update rejected locally", "resource", res.Name, "id", id, "error", err)
		return client.Response{}, err
	}
	resp, err := c.api.Send(ctx, client.Request{
		Method:        http.MethodPut,
		Path:          res.ItemPath(id),
		Body:          payload,
		Authenticated: true,
	}, sess)
	if err != nil {
		c.logger.Warn("update failed", "resource", res.Name, "id", id, "error", err)
		return client.Response{}, err
	}
	c.logger.Info("record updated", "resource", res.Name, "id", id, "fields", payload.Keys())
	return resp, nil
}

// Level classifies a notice for display.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is the one-line outcome shown to the user.
type Notice struct {
	Level   Level
	Message string
}

// Operation names the action a notice reports on.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
)

// NoticeFor turns the outcome of Add or Update into a user-facing message.
func NoticeFor(op Operation, res Resource, id int, err error) Notice {
	if err == nil {
		if op == OpUpdate {
			return Notice{Level: LevelSuccess, Message: fmt.Sprintf("%s com ID %d atualizado(a) com sucesso!", res.Singular, id)}
		}
		return Notice{Level: LevelSuccess, Message: fmt.Sprintf("%s adicionado(a) com sucesso!", res.Singular)}
	}
	return ErrorNotice(op, err)
}

// ErrorNotice renders err using the shared error taxonomy.
func ErrorNotice(op Operation, err error) Notice {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return Notice{Level: LevelWarning, Message: validationMessage(verr)}
	}
	if errors.Is(err, session.ErrNotLoggedIn) {
		return Notice{Level: LevelWarning, Message: "Faça login para continuar."}
	}
	if client.IsConnectionError(err) {
		return Notice{Level: LevelError, Message: "Erro de conexão com a API. Verifique se ela está rodando."}
	}
	if f, ok := client.AsFailure(err); ok {
		msg := fmt.Sprintf("Erro ao %s: %d - %s", verb(op), f.StatusCode, f.Message)
		if client.IsUnauthorized(err) {
			msg += " (sessão expirada? faça login novamente)"
		}
		return Notice{Level: LevelError, Message: msg}
	}
	return Notice{Level: LevelError, Message: fmt.Sprintf("Erro ao %s: %v", verb(op), err)}
}

func verb(op Operation) string {
	switch op {
	case OpUpdate:
		return "atualizar"
	case OpAdd:
		return "adicionar"
	default:
		return string(op)
	}
}

func validationMessage(err *ValidationError) string {
	switch err.Reason {
	case ReasonMissing:
		return "Por favor, preencha todos os campos obrigatórios."
	case ReasonNoFields:
		return "Por favor, preencha pelo menos um dos campos para atualizar."
	case ReasonBadID:
		return "Por favor, informe um ID válido (>= 1)."
	default:
		return "Valores inválidos: " + strings.Join(err.Fields, ", ")
	}
}

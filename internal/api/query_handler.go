package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/vdavid/vmail/webclient/internal/imap"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// errBadRequest marks failures caused by the request itself.
var errBadRequest = errors.New("bad request")

// QueryHandler serves POST /query_the_server: one form-encoded command per
// request, answered with a models.QueryResponse envelope.
type QueryHandler struct {
	gateways GatewayProvider
}

// NewQueryHandler creates a new QueryHandler instance.
func NewQueryHandler(gateways GatewayProvider) *QueryHandler {
	return &QueryHandler{gateways: gateways}
}

func (h *QueryHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, models.QueryResponse[any]{Error: "method not allowed"})
		return
	}

	id, ok := IdentityFromContext(r.Context(), w)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, models.QueryResponse[any]{Error: "invalid form"})
		return
	}

	command := r.PostForm.Get("command")
	data, err := h.run(r, id.UserID, command)
	switch {
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, models.QueryResponse[any]{Error: err.Error()})
	case err != nil:
		log.Printf("QueryHandler: %s failed for user %s: %v", command, id.UserID, err)
		writeJSON(w, http.StatusOK, models.QueryResponse[any]{Error: publicMessage(command, err)})
	default:
		writeJSON(w, http.StatusOK, models.QueryResponse[any]{Success: true, Data: data})
	}
}

// run executes command and returns its payload, nil for commands without one.
func (h *QueryHandler) run(r *http.Request, userID, command string) (any, error) {
	ctx := r.Context()
	form := r.PostForm
	gw := h.gateways(userID)

	draft := models.Draft{
		To:      form.Get("recipient"),
		Subject: form.Get("subject"),
		Body:    form.Get("body"),
	}

	switch command {
	case models.CommandFetchAll:
		snapshot, err := gw.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		return models.NewFoldersData(snapshot), nil

	case models.CommandSendEmail:
		return nil, gw.SendEmail(ctx, draft)

	case models.CommandSaveEmail:
		target, err := required(form.Get, "target_folder")
		if err != nil {
			return nil, err
		}
		uid, err := gw.SaveEmail(ctx, target, draft)
		if err != nil {
			return nil, err
		}
		return models.SavedData{UID: uid}, nil

	case models.CommandMoveToBin, models.CommandDeleteMessage:
		folder, uid, err := folderAndUID(form.Get)
		if err != nil {
			return nil, err
		}
		if command == models.CommandMoveToBin {
			return nil, gw.MoveToBin(ctx, folder, uid)
		}
		return nil, gw.DeleteMessage(ctx, folder, uid)

	case models.CommandMoveTo:
		folder, uid, err := folderAndUID(form.Get)
		if err != nil {
			return nil, err
		}
		newFolder, err := required(form.Get, "new_folder")
		if err != nil {
			return nil, err
		}
		return nil, gw.MoveTo(ctx, folder, uid, newFolder)

	case models.CommandCreateFolder:
		folder, err := required(form.Get, "folder")
		if err != nil {
			return nil, err
		}
		return nil, gw.CreateFolder(ctx, folder)

	case "":
		return nil, fmt.Errorf("%w: command is required", errBadRequest)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", errBadRequest, command)
	}
}

func required(get func(string) string, field string) (string, error) {
	value := get(field)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	return value, nil
}

func folderAndUID(get func(string) string) (string, string, error) {
	folder, err := required(get, "folder")
	if err != nil {
		return "", "", err
	}
	uid, err := required(get, "uid")
	if err != nil {
		return "", "", err
	}
	return folder, uid, nil
}

// publicMessage hides server internals except for errors the user can act on.
func publicMessage(command string, err error) string {
	for _, known := range []error{
		imap.ErrFolderNotFound,
		imap.ErrFolderExists,
		imap.ErrInvalidFolderName,
		imap.ErrMessageNotFound,
		imap.ErrNoRecipients,
	} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return command + " failed"
}

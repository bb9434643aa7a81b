package endpoints

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/store"
	"github.com/berea-study/berea/internal/svcctx"
)

// DeleteQuestionEndpoint handles DELETE /api/admin/questions/{id}.
type DeleteQuestionEndpoint struct{}

func (e *DeleteQuestionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/admin/questions/{id}", e.handler
}

func (e *DeleteQuestionEndpoint) RequiresInit() bool { return true }

func (e *DeleteQuestionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}

	if err := svcctx.StoreFrom(r.Context()).DeleteByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (e *DeleteQuestionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a question by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithAuthToken(token)
			if err := client.Delete(cmd.Context(), "/api/admin/questions/"+args[0]); err != nil {
				return err
			}
			cmd.Println("deleted")
			return nil
		},
	}
	adminTokenFlag(cmd, &token)
	return cmd
}

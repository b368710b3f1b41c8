package handler

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
)

// AssetHandler lists the animation frames shipped for a pet. The client asks
// which GIFs exist for a folder instead of hardcoding frame names.
type AssetHandler struct {
	assetDir string
	logger   *slog.Logger
}

func NewAssetHandler(assetDir string, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{assetDir: assetDir, logger: logger}
}

// HandleList returns the GIF filenames under one pet folder.
//
// HTTP: GET /api/assets/{folder} → ["idle.gif", "run.gif", ...]
func (h *AssetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")

	// The folder name must be a single path element. Anything with
	// separators or a leading dot could escape the asset root.
	if folder == "" || folder != filepath.Base(folder) || strings.HasPrefix(folder, ".") {
		writeError(w, apperror.ValidationFailed("folder", "invalid asset folder name"))
		return
	}

	entries, err := os.ReadDir(filepath.Join(h.assetDir, folder))
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, apperror.NotFound("asset folder", folder))
			return
		}
		h.logger.Error("reading asset folder", slog.String("folder", folder), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	gifs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".gif") {
			gifs = append(gifs, e.Name())
		}
	}

	writeJSON(w, http.StatusOK, gifs)
}

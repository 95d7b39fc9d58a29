package amsserver

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amstypes"
	"github.com/function61/aitta/pkg/amsutils"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/mime"
	"github.com/gorilla/mux"
)

const (
	headerExternalUserID    = "X-External-User-Id"
	headerExternalSessionID = "X-External-Session-Id"
	headerRequestID         = "X-Request-Id"

	multipartFieldBinary   = "binary"
	multipartFieldDocument = "document"

	maxMultipartMemory = 32 * 1024 * 1024
)

func defineRestApi(
	router *mux.Router,
	sets *SetsService,
	assets *AssetsService,
	staging *StagingCache,
	logger *log.Logger,
) {
	logl := logex.Levels(logex.NonNil(logger))

	listSets := func(w http.ResponseWriter, r *http.Request) {
		allSets, err := sets.List()
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, allSets)
	}

	createSet := func(w http.ResponseWriter, r *http.Request) {
		set := &amstypes.Set{}
		if err := json.NewDecoder(r.Body).Decode(set); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		created, err := sets.Create(set, r.Header.Get(headerExternalUserID))
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		outJson(w, created)
	}

	getSet := func(w http.ResponseWriter, r *http.Request) {
		set, err := sets.GetByID(mux.Vars(r)["setId"])
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, set)
	}

	updateSet := func(w http.ResponseWriter, r *http.Request) {
		changes := SetChanges{}
		if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		updated, err := sets.Update(
			mux.Vars(r)["setId"],
			changes,
			r.Header.Get(headerExternalUserID))
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, updated)
	}

	deleteSet := func(w http.ResponseWriter, r *http.Request) {
		if err := sets.Delete(mux.Vars(r)["setId"]); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}

	searchAssets := func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		found, err := assets.Search(AssetFilter{
			SetID:    query.Get("set_id"),
			State:    amstypes.AssetState(query.Get("state")),
			Mimetype: query.Get("mimetype"),
			Name:     query.Get("name"),
			Filename: query.Get("filename"),
			Tag:      query.Get("tag"),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, found)
	}

	createAsset := func(w http.ResponseWriter, r *http.Request) {
		asset := &amstypes.Asset{}

		requestID, err := stageMultipart(r, staging, asset)
		if err != nil {
			writeError(w, err)
			return
		}

		content, _ := staging.Pull(requestID)

		created, err := assets.Create(r.Context(), asset, content, r.Header.Get(headerExternalUserID))
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		outJson(w, created)
	}

	getAsset := func(w http.ResponseWriter, r *http.Request) {
		asset, err := assets.GetByID(mux.Vars(r)["assetId"])
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, asset)
	}

	updateAsset := func(w http.ResponseWriter, r *http.Request) {
		changes := AssetChanges{}

		requestID, err := stageMultipart(r, staging, &changes)
		if err != nil {
			writeError(w, err)
			return
		}

		// missing entry means no binary change requested
		content, _ := staging.Pull(requestID)

		updated, err := assets.Update(
			r.Context(),
			mux.Vars(r)["assetId"],
			changes,
			content,
			r.Header.Get(headerExternalUserID))
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, updated)
	}

	deleteAsset := func(w http.ResponseWriter, r *http.Request) {
		if err := assets.Delete(r.Context(), mux.Vars(r)["assetId"]); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}

	downloadAsset := func(w http.ResponseWriter, r *http.Request) {
		asset, content, err := assets.Download(r.Context(), mux.Vars(r)["assetId"])
		if err != nil {
			writeError(w, err)
			return
		}
		defer content.Close()

		w.Header().Set("Content-Type", asset.Mimetype)
		w.Header().Set("Content-Disposition", `attachment; filename="`+asset.Filename+`"`)

		if _, err := io.Copy(w, content); err != nil {
			// cannot change response status anymore
			logl.Error.Printf("download %s: %v", asset.ID, err)
		}
	}

	lockAsset := func(w http.ResponseWriter, r *http.Request) {
		body := struct {
			LockAction string `json:"lock_action"`
		}{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		locked, err := assets.Lock(
			mux.Vars(r)["assetId"],
			r.Header.Get(headerExternalUserID),
			r.Header.Get(headerExternalSessionID),
			body.LockAction)
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, locked)
	}

	unlockAsset := func(w http.ResponseWriter, r *http.Request) {
		force := r.URL.Query().Get("force") == "true"

		unlocked, err := assets.Unlock(
			mux.Vars(r)["assetId"],
			r.Header.Get(headerExternalUserID),
			r.Header.Get(headerExternalSessionID),
			force)
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, unlocked)
	}

	unlockSession := func(w http.ResponseWriter, r *http.Request) {
		if err := assets.UnlockSession(
			r.Header.Get(headerExternalUserID),
			r.Header.Get(headerExternalSessionID),
		); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}

	downloadRendition := func(w http.ResponseWriter, r *http.Request) {
		params, err := renditionParamsFromQuery(r)
		if err != nil {
			writeError(w, err)
			return
		}

		rendition, content, err := assets.DownloadRendition(r.Context(), mux.Vars(r)["assetId"], params)
		if err != nil {
			writeError(w, err)
			return
		}
		defer content.Close()

		w.Header().Set("Content-Type", mime.TypeByExtension(path.Ext(rendition.Filename), mime.OctetStream))
		w.Header().Set("Content-Disposition", `attachment; filename="`+rendition.Filename+`"`)

		if _, err := io.Copy(w, content); err != nil {
			logl.Error.Printf("download rendition %s: %v", rendition.MediaID, err)
		}
	}

	ensureRendition := func(w http.ResponseWriter, r *http.Request) {
		params, err := renditionParamsFromQuery(r)
		if err != nil {
			writeError(w, err)
			return
		}

		rendition, err := assets.EnsureRendition(r.Context(), mux.Vars(r)["assetId"], params)
		if err != nil {
			writeError(w, err)
			return
		}

		outJson(w, rendition)
	}

	router.HandleFunc("/api/sets", listSets).Methods(http.MethodGet)
	router.HandleFunc("/api/sets", createSet).Methods(http.MethodPost)
	router.HandleFunc("/api/sets/{setId}", getSet).Methods(http.MethodGet)
	router.HandleFunc("/api/sets/{setId}", updateSet).Methods(http.MethodPut)
	router.HandleFunc("/api/sets/{setId}", deleteSet).Methods(http.MethodDelete)

	router.HandleFunc("/api/assets", searchAssets).Methods(http.MethodGet)
	router.HandleFunc("/api/assets", createAsset).Methods(http.MethodPost)
	router.HandleFunc("/api/assets/unlock-session", unlockSession).Methods(http.MethodPost)
	router.HandleFunc("/api/assets/{assetId}", getAsset).Methods(http.MethodGet)
	router.HandleFunc("/api/assets/{assetId}", updateAsset).Methods(http.MethodPut)
	router.HandleFunc("/api/assets/{assetId}", deleteAsset).Methods(http.MethodDelete)
	router.HandleFunc("/api/assets/{assetId}/binary", downloadAsset).Methods(http.MethodGet)
	router.HandleFunc("/api/assets/{assetId}/lock", lockAsset).Methods(http.MethodPost)
	router.HandleFunc("/api/assets/{assetId}/unlock", unlockAsset).Methods(http.MethodPost)
	router.HandleFunc("/api/assets/{assetId}/renditions", ensureRendition).Methods(http.MethodPost)
	router.HandleFunc("/api/assets/{assetId}/renditions/binary", downloadRendition).Methods(http.MethodGet)
}

// parses the multipart request, staging the binary part (if any) under the request id
// and decoding the document part into document. returns the request id to pull the
// staged bytes with.
func stageMultipart(r *http.Request, staging *StagingCache, document any) (string, error) {
	requestID := r.Header.Get(headerRequestID)
	if requestID == "" {
		requestID = amsutils.NewRequestID()
	}

	// plain JSON body means metadata only, nothing to stage
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(document); err != nil {
			return "", amserrors.ConfigError("malformed request body", err)
		}

		return requestID, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return "", amserrors.ConfigError("malformed multipart request", err)
	}

	if file, _, err := r.FormFile(multipartFieldBinary); err == nil {
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return "", err
		}

		staging.Put(requestID, content)
	}

	if documentJson := r.FormValue(multipartFieldDocument); documentJson != "" {
		if err := json.Unmarshal([]byte(documentJson), document); err != nil {
			staging.Pull(requestID) // don't leak the staged bytes on a rejected request

			return "", amserrors.ConfigError("malformed document part", err)
		}
	}

	return requestID, nil
}

func renditionParamsFromQuery(r *http.Request) (amstypes.RenditionParams, error) {
	query := r.URL.Query()

	width, err := queryInt(query.Get("width"))
	if err != nil {
		return amstypes.RenditionParams{}, amserrors.ConfigError("malformed width", err)
	}

	height, err := queryInt(query.Get("height"))
	if err != nil {
		return amstypes.RenditionParams{}, amserrors.ConfigError("malformed height", err)
	}

	if width == 0 && height == 0 {
		return amstypes.RenditionParams{}, amserrors.RenditionDimensionsNotProvided()
	}

	return amstypes.RenditionParams{
		Width:           width,
		Height:          height,
		KeepProportions: query.Get("keep_proportions") != "false", // default true
	}, nil
}

func queryInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}

	num, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	if num < 0 {
		return 0, fmt.Errorf("negative value: %d", num)
	}

	return num, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := amserrors.HTTPStatus(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(struct {
		Error       int    `json:"error"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}{
		Error:       status,
		Name:        amserrors.Code(err),
		Description: err.Error(),
	})
}

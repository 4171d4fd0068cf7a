// Package assets stores uploaded images in S3 and serves them back.
package assets

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
	"github.com/KLTN-2025/PTNTYTST5951/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxImageSize is the maximum size of an uploaded image.
const MaxImageSize = 10 * 1024 * 1024

const keyPrefix = "assets/"

var allowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}
var allowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

var (
	ErrNoFile           = httpserv.BadRequest("No file provided for upload")
	ErrInvalidFileType  = httpserv.BadRequest("Invalid file type")
	ErrInvalidExtension = httpserv.BadRequest("Invalid file extension")
	ErrFileTooLarge     = httpserv.NewErrorWithCode("File too large", http.StatusRequestEntityTooLarge)
	ErrAssetNotFound    = httpserv.NotFound("Asset not found")
	ErrStorage          = httpserv.NewErrorWithCode("Asset storage unavailable", http.StatusBadGateway)
)

type Metrics interface {
	IncrementAssetUpload(outcome string)
}

// ImageAsset describes an uploaded image.
type ImageAsset struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

type Service struct {
	store        ObjectStore
	publicURL    string
	metrics      Metrics
	authenticate func(http.HandlerFunc) http.HandlerFunc
}

// New creates the asset service. publicURL is the externally reachable base URL of this server, used in asset URLs.
func New(store ObjectStore, publicURL string, observer Metrics, authenticate func(http.HandlerFunc) http.HandlerFunc) *Service {
	return &Service{
		store:        store,
		publicURL:    strings.TrimSuffix(publicURL, "/"),
		metrics:      observer,
		authenticate: authenticate,
	}
}

func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	httpserv.RegisterRoutes(mux,
		httpserv.Route{
			Method:     http.MethodPost,
			Path:       "/api/assets/images",
			Handler:    s.handleUploadImage,
			Middleware: s.authenticate,
		},
		// Assets are public, they're referenced from FHIR resources (e.g. Practitioner.photo).
		httpserv.Route{
			Method:  http.MethodGet,
			Path:    "/api/assets/{type}/{id}",
			Handler: s.handleGetAsset,
		},
	)
}

func (s *Service) handleUploadImage(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	result, err := s.uploadImage(request)
	if err != nil {
		outcome := metrics.OutcomeInvalid
		var errorWithCode *httpserv.ErrorWithCode
		if !errors.As(err, &errorWithCode) || errorWithCode.StatusCode >= 500 {
			outcome = metrics.OutcomeFailed
		}
		s.metrics.IncrementAssetUpload(outcome)
		httpserv.WriteError(ctx, response, err, "upload image")
		return
	}
	s.metrics.IncrementAssetUpload(metrics.OutcomeCreated)
	httpserv.WriteJSON(ctx, response, http.StatusCreated, result)
}

func (s *Service) uploadImage(request *http.Request) (*ImageAsset, error) {
	ctx := request.Context()
	// Leave room for the multipart framing around the file
	request.Body = http.MaxBytesReader(nil, request.Body, MaxImageSize+1024*1024)
	file, header, err := request.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("%w: %w", ErrNoFile, err)
	}
	defer file.Close()
	if header.Size > MaxImageSize {
		return nil, ErrFileTooLarge
	}
	contentType := header.Header.Get("Content-Type")
	if !slices.Contains(allowedImageTypes, contentType) {
		return nil, ErrInvalidFileType
	}
	if !slices.Contains(allowedImageExtensions, strings.ToLower(path.Ext(header.Filename))) {
		return nil, ErrInvalidExtension
	}
	id := uuid.NewString()
	key := keyPrefix + "images/" + id
	if err := s.store.Put(ctx, key, file, header.Size, contentType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	log.Ctx(ctx).Info().Msgf("Stored image %s (%s, %d bytes)", key, contentType, header.Size)
	return &ImageAsset{
		URL:         s.publicURL + "/api/assets/images/" + id,
		ContentType: contentType,
	}, nil
}

func (s *Service) handleGetAsset(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	assetType := request.PathValue("type")
	id := request.PathValue("id")
	if !validSegment(assetType) || !validSegment(id) {
		httpserv.WriteError(ctx, response, ErrAssetNotFound, "get asset")
		return
	}
	object, err := s.store.Get(ctx, keyPrefix+assetType+"/"+id)
	if errors.Is(err, ErrObjectNotFound) {
		httpserv.WriteError(ctx, response, fmt.Errorf("%w: %w", ErrAssetNotFound, err), "get asset")
		return
	} else if err != nil {
		httpserv.WriteError(ctx, response, fmt.Errorf("%w: %w", ErrStorage, err), "get asset")
		return
	}
	defer object.Body.Close()
	response.Header().Set("Content-Type", object.ContentType)
	if object.ContentLength > 0 {
		response.Header().Set("Content-Length", strconv.FormatInt(object.ContentLength, 10))
	}
	response.WriteHeader(http.StatusOK)
	if _, err := io.Copy(response, object.Body); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msgf("Failed to stream asset %s/%s", assetType, id)
	}
}

// validSegment rejects path values that would escape the asset key prefix.
func validSegment(value string) bool {
	return value != "" && value != "." && value != ".." && !strings.ContainsAny(value, "/\\")
}

package ceremony

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/marcelojr/awards-night/internal/domain"
)

var errInvalidDataURI = errors.New("photo is not a base64 data uri")

// maxPhotoBytes bounds decoded payloads; the photo travels inside the state
// document, so an oversized upload would bloat every save.
const maxPhotoBytes = 2 << 20

// decodePhotoDataURI parses a "data:<mime>;base64,<payload>" URI into an
// embedded photo blob. Callers treat any error as "register without a photo".
func decodePhotoDataURI(uri string) (*domain.Photo, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, errInvalidDataURI
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errInvalidDataURI
	}

	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mime == "" || !strings.Contains(mime, "/") {
		return nil, errInvalidDataURI
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data) > maxPhotoBytes {
		return nil, errInvalidDataURI
	}

	return &domain.Photo{MimeType: mime, Data: data}, nil
}

package errcode

import (
	"encoding/json"
	"net/http"

	"github.com/resourcex/resourcex"
)

// ServeJSON writes err to w as the stable {error, code} envelope, using
// err's HTTP status if it carries an ErrorCode, or mapping a *resourcex.Error
// through FromKind, or else defaulting to 500.
func ServeJSON(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	apiErr, ok := err.(Error)
	if !ok {
		apiErr = FromKind(resourcex.KindOf(err), err.Error())
	}

	w.WriteHeader(apiErr.Code.Status())
	_ = json.NewEncoder(w).Encode(apiErr)
}

// FromKind maps a resourcex.Kind to the protocol's stable error code. Kinds
// with no direct protocol meaning (storage, corruption, cancellation)
// surface as STORAGE_ERROR or INTERNAL_ERROR.
func FromKind(kind resourcex.Kind, message string) Error {
	switch kind {
	case resourcex.KindInvalidLocator:
		return New(InvalidLocator, message)
	case resourcex.KindResourceNotFound, resourcex.KindBlobNotFound:
		return New(ResourceNotFound, message)
	case resourcex.KindStorageIO, resourcex.KindCorruptState, resourcex.KindCorruptArchive:
		return New(StorageError, message)
	default:
		return New(InternalError, message)
	}
}

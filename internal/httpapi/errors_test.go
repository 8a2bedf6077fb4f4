package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetd/internal/conductor"
	"fleetd/internal/dispatch"
	"fleetd/internal/objects"
	"fleetd/internal/registry"
)

func TestStatusFor_NotFoundVariants(t *testing.T) {
	for _, err := range []error{
		objects.ErrNodeNotFound,
		objects.ErrNetworkNotFound,
		objects.ErrOSImageNotFound,
		objects.ErrNicNotFound,
		objects.ErrServiceNotFound,
		objects.ErrPasswdNotFound,
		registry.ErrPluginNotFound,
		dispatch.ErrNoValidHost,
	} {
		assert.Equal(t, http.StatusNotFound, statusFor(err), err.Error())
	}
}

func TestStatusFor_ConflictVariants(t *testing.T) {
	for _, err := range []error{
		objects.ErrDuplicateName,
		objects.ErrMACAlreadyExists,
		objects.ErrNicAlreadyExists,
		objects.ErrNetworkExists,
		objects.ErrOSImageExists,
		objects.ErrNodeLocked,
		objects.ErrInvalidState,
		objects.ErrReferenced,
	} {
		assert.Equal(t, http.StatusConflict, statusFor(err), err.Error())
	}
}

func TestStatusFor_ServiceUnavailable(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(conductor.ErrNoFreeServiceWorker))
}

func TestStatusFor_WrappedError(t *testing.T) {
	wrapped := errors.New("lookup node1: " + objects.ErrNodeNotFound.Error())
	assert.Equal(t, http.StatusInternalServerError, statusFor(wrapped))

	properlyWrapped := errWrap(objects.ErrNodeNotFound)
	assert.Equal(t, http.StatusNotFound, statusFor(properlyWrapped))
}

func errWrap(err error) error {
	return errors.Join(err)
}

func TestStatusFor_NilIsOK(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusFor(nil))
}

func TestStatusFor_UnclassifiedIsInternalError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("something unexpected")))
}

func TestWriteFault_EncodesFaultShape(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFault(rec, http.StatusConflict, "already exists")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"faultstring":"already exists","faultcode":409}`, rec.Body.String())
}

func TestWriteErr_DerivesStatusFromError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, objects.ErrNodeNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"faultstring":"node not found","faultcode":404}`, rec.Body.String())
}

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Version negotiation (§6): "Version negotiation via
// X-xCAT3-API-Version: major.minor" in the original, carried here as its
// named successor per SPEC_FULL's §ambient stack / §supplemented
// features note. The server advertises its supported [min,max] minor
// range for the fixed major version 1; a request naming a different major
// is rejected with 406 Not Acceptable.
const (
	versionHeader = "X-Fleet-API-Version"
	apiMajor      = 1
	apiMinMinor   = 0
	apiMaxMinor   = 0
)

func advertisedRange() string {
	return fmt.Sprintf("%d.%d", apiMajor, apiMinMinor) + "," + fmt.Sprintf("%d.%d", apiMajor, apiMaxMinor)
}

// versionMiddleware implements the negotiation: every response carries the
// server's supported range; a request naming an unsupported major version
// is rejected before reaching any handler.
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(versionHeader+"-Minimum", fmt.Sprintf("%d.%d", apiMajor, apiMinMinor))
		w.Header().Set(versionHeader+"-Maximum", fmt.Sprintf("%d.%d", apiMajor, apiMaxMinor))

		if v := r.Header.Get(versionHeader); v != "" {
			parts := strings.SplitN(v, ".", 2)
			major, err := strconv.Atoi(parts[0])
			if err != nil || major != apiMajor {
				writeFault(w, http.StatusNotAcceptable, fmt.Sprintf("unsupported %s major version: %s", versionHeader, v))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

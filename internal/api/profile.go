package api

import (
	"net/http"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/profile"
)

type profileRequest struct {
	ChannelName    string `json:"channelName" validate:"max=200"`
	ContentType    string `json:"contentType" validate:"max=200"`
	Niche          string `json:"niche" validate:"max=200"`
	Tone           string `json:"tone" validate:"max=200"`
	TargetAudience string `json:"targetAudience" validate:"max=500"`
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Studio.Profiles().GetProfile(userID(r))
		if err != nil {
			writeServiceError(w, err, "profile")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handlePutProfile replaces the caller's profile.
func handlePutProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		p, err := deps.Studio.Profiles().Upsert(userID(r), profile.Profile(req))
		if err != nil {
			writeServiceError(w, err, "profile")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

package bus

import "github.com/formagent/formagent/profile"

// Message names. The cache host owns the profile.* and site.* handlers;
// the page scanner owns fill.now.
const (
	MsgGetProfile      = "profile.get"
	MsgUpdateProfile   = "profile.update"
	MsgProfileUpdated  = "profile.updated"
	MsgFillNow         = "fill.now"
	MsgSetSiteDisabled = "site.set"
	MsgGetSiteDisabled = "site.get"
)

// GetProfileResponse carries the point-in-time profile copy, or null when
// no profile is available anywhere.
type GetProfileResponse struct {
	Profile *profile.Profile `json:"profile"`
}

// UpdateProfileRequest is a full-replacement write.
type UpdateProfileRequest struct {
	Data *profile.Profile `json:"data"`
}

// UpdateProfileResponse reports whether the write reached the store.
type UpdateProfileResponse struct {
	Success bool `json:"success"`
}

// ProfileUpdatedRequest is the cache-invalidation push: the profile has
// already been written elsewhere and both cache copies must converge on it.
type ProfileUpdatedRequest struct {
	NewProfile *profile.Profile `json:"new_profile"`
}

// AckResponse acknowledges messages with no other payload.
type AckResponse struct {
	Success bool `json:"success"`
}

// SetSiteDisabledRequest toggles filling for a hostname.
type SetSiteDisabledRequest struct {
	Host       string `json:"host"`
	IsDisabled bool   `json:"is_disabled"`
}

// GetSiteDisabledRequest asks whether filling is suppressed for a hostname.
type GetSiteDisabledRequest struct {
	Host string `json:"host"`
}

// GetSiteDisabledResponse answers the site.get message.
type GetSiteDisabledResponse struct {
	IsDisabled bool `json:"is_disabled"`
}

// FillNowResponse reports the fill count of an on-demand scan.
type FillNowResponse struct {
	Success bool `json:"success"`
	Filled  int  `json:"filled"`
}

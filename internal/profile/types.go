package profile

// Profile is a creator's channel metadata used as generation context.
type Profile struct {
	ChannelName    string `json:"channelName"`
	ContentType    string `json:"contentType"`
	Niche          string `json:"niche"`
	Tone           string `json:"tone"`
	TargetAudience string `json:"targetAudience"`
}

// Field keys as persisted in the profile store.
const (
	KeyChannelName    = "channel_name"
	KeyContentType    = "content_type"
	KeyNiche          = "niche"
	KeyTone           = "tone"
	KeyTargetAudience = "target_audience"
)

// Keys lists every valid profile key in display order.
var Keys = []string{KeyChannelName, KeyContentType, KeyNiche, KeyTone, KeyTargetAudience}

// IsEmpty reports whether no field is set.
func (p Profile) IsEmpty() bool {
	return p == Profile{}
}

func (p Profile) fields() map[string]string {
	return map[string]string{
		KeyChannelName:    p.ChannelName,
		KeyContentType:    p.ContentType,
		KeyNiche:          p.Niche,
		KeyTone:           p.Tone,
		KeyTargetAudience: p.TargetAudience,
	}
}

// Set assigns the field named by key and reports whether key is valid.
func (p *Profile) Set(key, value string) bool {
	switch key {
	case KeyChannelName:
		p.ChannelName = value
	case KeyContentType:
		p.ContentType = value
	case KeyNiche:
		p.Niche = value
	case KeyTone:
		p.Tone = value
	case KeyTargetAudience:
		p.TargetAudience = value
	default:
		return false
	}
	return true
}

package amstypes

func (a *Asset) Locked() bool {
	return a.LockAction != ""
}

func (s *Set) IsDraft() bool {
	return s.State == SetStateDraft
}

// a nil return means no cached rendition satisfies the request. a requested dimension
// must match exactly; an unrequested one (zero) is a wildcard. KeepProportions always
// matches exactly.
func FindRendition(renditions []Rendition, params RenditionParams) *Rendition {
	for i, rend := range renditions {
		if params.Width != 0 && rend.Params.Width != params.Width {
			continue
		}

		if params.Height != 0 && rend.Params.Height != params.Height {
			continue
		}

		if rend.Params.KeepProportions != params.KeepProportions {
			continue
		}

		return &renditions[i]
	}

	return nil
}

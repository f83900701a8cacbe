package recording

// DefaultSignalChannelCount is the positional convention of the motor-imagery
// recordings: the leading 22 channels are EEG, the remainder EOG.
const DefaultSignalChannelCount = 22

// AssignRoles gives the first signalChannelCount channels the signal role and
// every remaining channel the artifact-reference role. Channel content is not
// inspected. A count larger than the channel list marks every channel signal.
func AssignRoles(r *Recording, signalChannelCount int) *Recording {
	c := r.Clone()
	for i := range c.Roles {
		if i < signalChannelCount {
			c.Roles[i] = RoleSignal
		} else {
			c.Roles[i] = RoleArtifact
		}
	}
	return c
}

// RoleMap returns the channel name -> role mapping.
func (r *Recording) RoleMap() map[string]Role {
	m := make(map[string]Role, len(r.Names))
	for i, name := range r.Names {
		m[name] = r.Roles[i]
	}
	return m
}

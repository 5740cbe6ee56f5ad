package model

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

type LeadershipRole string

const (
	LeadershipNone          LeadershipRole = "none"
	LeadershipGroupLeader   LeadershipRole = "groupLeader"
	LeadershipPlatoonLeader LeadershipRole = "platoonLeader"
)

func (r LeadershipRole) Valid() bool {
	switch r {
	case LeadershipNone, LeadershipGroupLeader, LeadershipPlatoonLeader:
		return true
	}
	return false
}

// EmergencyState is the lifecycle of an emergency record. The only
// transition is active -> inactive.
type EmergencyState string

const (
	EmergencyActive   EmergencyState = "active"
	EmergencyInactive EmergencyState = "inactive"
)

func (s EmergencyState) CanTransition(to EmergencyState) bool {
	return s == EmergencyActive && to == EmergencyInactive
}

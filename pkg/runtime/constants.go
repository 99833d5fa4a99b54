package runtime

type CollectStatus int8

const (
	Collecting CollectStatus = iota
	Unconnected
	Stopped
)

var CollectStatusToString = map[CollectStatus]string{
	Collecting:  "collecting",
	Unconnected: "unconnected",
	Stopped:     "stopped",
}

// Availability payloads
const (
	Online  = "online"
	Offline = "offline"
)
